// README: Booking store backed by PostgreSQL with version-guarded updates.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivebook/internal/infra"
	"drivebook/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const bookingColumns = `id, customer_id, driver_id, pickup, dropoff, booking_kind,
       duration_value, duration_unit, scheduled_start, scheduled_end, distance_km,
       status, payment_status, payment_method, pricing, rating, timeline,
       actual_start, actual_end, notes, version, created_at, updated_at`

// jsonCols holds the JSONB-encoded parts of a booking.
type jsonCols struct {
	pickup, dropoff, pricing, rating, timeline []byte
}

func encode(b *Booking) (jsonCols, error) {
	var r jsonCols
	var err error
	if r.pickup, err = json.Marshal(b.Pickup); err != nil {
		return r, fmt.Errorf("encode pickup: %w", err)
	}
	if b.Dropoff != nil {
		if r.dropoff, err = json.Marshal(b.Dropoff); err != nil {
			return r, fmt.Errorf("encode dropoff: %w", err)
		}
	}
	if r.pricing, err = json.Marshal(b.Pricing); err != nil {
		return r, fmt.Errorf("encode pricing: %w", err)
	}
	if r.rating, err = json.Marshal(b.Rating); err != nil {
		return r, fmt.Errorf("encode rating: %w", err)
	}
	if r.timeline, err = json.Marshal(b.Timeline); err != nil {
		return r, fmt.Errorf("encode timeline: %w", err)
	}
	return r, nil
}

func (s *PgStore) Create(ctx context.Context, b *Booking) error {
	r, err := encode(b)
	if err != nil {
		return err
	}
	_, err = infra.Conn(ctx, s.db).Exec(ctx, `
        INSERT INTO bookings (`+bookingColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		string(b.ID), string(b.CustomerID), string(b.DriverID),
		r.pickup, r.dropoff,
		string(b.Kind), b.Duration.Value(), string(b.Duration.Unit()),
		b.ScheduledStart, b.ScheduledEnd, b.DistanceKm,
		string(b.Status), string(b.PaymentStatus), string(b.PaymentMethod),
		r.pricing, r.rating, r.timeline,
		b.ActualStart, b.ActualEnd, b.Notes,
		b.Version, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// Update writes b only if the row still carries b.Version. Identity and schedule never change.
func (s *PgStore) Update(ctx context.Context, b *Booking) (bool, error) {
	r, err := encode(b)
	if err != nil {
		return false, err
	}
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
        UPDATE bookings
        SET status = $1,
            payment_status = $2,
            rating = $3,
            timeline = $4,
            actual_start = $5,
            actual_end = $6,
            updated_at = $7,
            version = version + 1
        WHERE id = $8 AND version = $9`,
		string(b.Status), string(b.PaymentStatus),
		r.rating, r.timeline,
		b.ActualStart, b.ActualEnd,
		b.UpdatedAt,
		string(b.ID), b.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	b.Version++
	return true, nil
}

func (s *PgStore) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Booking, error) {
	return s.list(ctx, `WHERE customer_id = $1`, string(customerID))
}

func (s *PgStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Booking, error) {
	return s.list(ctx, `WHERE driver_id = $1`, string(driverID))
}

func (s *PgStore) ListAll(ctx context.Context) ([]*Booking, error) {
	return s.list(ctx, ``)
}

func (s *PgStore) list(ctx context.Context, where string, args ...any) ([]*Booking, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings `+where+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	out := make([]*Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b                      Booking
		r                      jsonCols
		kind, unit             string
		status, pay, method    string
		durationValue          float64
		actualStart, actualEnd *time.Time
	)
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.DriverID,
		&r.pickup, &r.dropoff,
		&kind, &durationValue, &unit,
		&b.ScheduledStart, &b.ScheduledEnd, &b.DistanceKm,
		&status, &pay, &method,
		&r.pricing, &r.rating, &r.timeline,
		&actualStart, &actualEnd, &b.Notes,
		&b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Kind = Kind(kind)
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(pay)
	b.PaymentMethod = PaymentMethod(method)
	b.ActualStart, b.ActualEnd = actualStart, actualEnd

	d, err := types.ParseDuration(durationValue, unit)
	if err != nil {
		return nil, fmt.Errorf("decode duration for booking %s: %w", b.ID, err)
	}
	b.Duration = d

	if err := json.Unmarshal(r.pickup, &b.Pickup); err != nil {
		return nil, fmt.Errorf("decode pickup for booking %s: %w", b.ID, err)
	}
	if len(r.dropoff) > 0 {
		b.Dropoff = &types.Place{}
		if err := json.Unmarshal(r.dropoff, b.Dropoff); err != nil {
			return nil, fmt.Errorf("decode dropoff for booking %s: %w", b.ID, err)
		}
	}
	if err := json.Unmarshal(r.pricing, &b.Pricing); err != nil {
		return nil, fmt.Errorf("decode pricing for booking %s: %w", b.ID, err)
	}
	if err := json.Unmarshal(r.rating, &b.Rating); err != nil {
		return nil, fmt.Errorf("decode rating for booking %s: %w", b.ID, err)
	}
	if err := json.Unmarshal(r.timeline, &b.Timeline); err != nil {
		return nil, fmt.Errorf("decode timeline for booking %s: %w", b.ID, err)
	}
	return &b, nil
}
