// README: In-memory unit of work commit/rollback tests.
package infra

import (
	"context"
	"errors"
	"testing"
)

func TestMemUnitOfWorkRollsBackInReverseOrder(t *testing.T) {
	uow := NewMemUnitOfWork()
	var undone []int
	boom := errors.New("boom")

	err := uow.WithinTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { undone = append(undone, 1) })
		// Nested calls join the outer transaction.
		_ = uow.WithinTx(ctx, func(ctx context.Context) error {
			OnRollback(ctx, func() { undone = append(undone, 2) })
			return nil
		})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(undone) != 2 || undone[0] != 2 || undone[1] != 1 {
		t.Fatalf("undo order = %v", undone)
	}
}

func TestMemUnitOfWorkCommitSkipsUndo(t *testing.T) {
	uow := NewMemUnitOfWork()
	called := false
	err := uow.WithinTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { called = true })
		return nil
	})
	if err != nil || called {
		t.Fatalf("err=%v undo called=%v", err, called)
	}

	// Outside a transaction registration is a no-op.
	OnRollback(context.Background(), func() { called = true })
	if called {
		t.Fatal("undo ran outside a transaction")
	}
}

func TestMemUnitOfWorkRollsBackOnPanic(t *testing.T) {
	uow := NewMemUnitOfWork()
	undone := false
	func() {
		defer func() { _ = recover() }()
		_ = uow.WithinTx(context.Background(), func(ctx context.Context) error {
			OnRollback(ctx, func() { undone = true })
			panic("kaboom")
		})
	}()
	if !undone {
		t.Fatal("expected rollback on panic")
	}
	// The lock was released.
	if err := uow.WithinTx(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("second tx: %v", err)
	}
}
