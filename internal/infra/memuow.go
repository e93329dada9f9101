// README: In-memory unit of work: serializes writers and undoes registered changes on failure.
package infra

import (
	"context"
	"sync"
)

type memTxKey struct{}

type memTx struct {
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// MemUnitOfWork gives in-memory stores the same commit/rollback contract as PgUnitOfWork.
// Transactions run one at a time.
type MemUnitOfWork struct {
	mu sync.Mutex
}

func NewMemUnitOfWork() *MemUnitOfWork {
	return &MemUnitOfWork{}
}

func (u *MemUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	tx := &memTx{}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// OnRollback registers undo to run if the transaction on ctx fails. Outside a transaction it is a no-op.
func OnRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}
