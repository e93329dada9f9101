// README: Driver store backed by PostgreSQL; the calendar is a JSONB column guarded by a version.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivebook/internal/infra"
	"drivebook/internal/modules/availability"
	"drivebook/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const driverColumns = `id, hourly_rate, daily_rate, weekly_rate, monthly_rate, currency,
       rating_average, rating_count, is_open, slots, version, created_at, updated_at`

func (s *PgStore) Create(ctx context.Context, d *Driver) error {
	slots, err := json.Marshal(d.Availability.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
        INSERT INTO drivers (`+driverColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (id) DO NOTHING`,
		string(d.ID),
		d.Rates.Hourly, d.Rates.Daily, d.Rates.Weekly, d.Rates.Monthly,
		d.Currency,
		d.Rating.Average, d.Rating.Count,
		d.Availability.IsOpenForBookings,
		slots,
		d.Version,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// Update writes d only if the row still carries d.Version.
func (s *PgStore) Update(ctx context.Context, d *Driver) (bool, error) {
	slots, err := json.Marshal(d.Availability.Slots)
	if err != nil {
		return false, fmt.Errorf("encode slots: %w", err)
	}
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
        UPDATE drivers
        SET hourly_rate = $1,
            daily_rate = $2,
            weekly_rate = $3,
            monthly_rate = $4,
            rating_average = $5,
            rating_count = $6,
            is_open = $7,
            slots = $8,
            updated_at = $9,
            version = version + 1
        WHERE id = $10 AND version = $11`,
		d.Rates.Hourly, d.Rates.Daily, d.Rates.Weekly, d.Rates.Monthly,
		d.Rating.Average, d.Rating.Count,
		d.Availability.IsOpenForBookings,
		slots,
		d.UpdatedAt,
		string(d.ID),
		d.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	d.Version++
	return true, nil
}

func (s *PgStore) List(ctx context.Context) ([]*Driver, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var slots []byte
	err := row.Scan(
		&d.ID,
		&d.Rates.Hourly, &d.Rates.Daily, &d.Rates.Weekly, &d.Rates.Monthly,
		&d.Currency,
		&d.Rating.Average, &d.Rating.Count,
		&d.Availability.IsOpenForBookings,
		&slots,
		&d.Version,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Availability.Slots = []availability.TimeInterval{}
	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &d.Availability.Slots); err != nil {
			return nil, fmt.Errorf("decode slots for driver %s: %w", d.ID, err)
		}
	}
	return &d, nil
}
