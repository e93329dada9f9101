package pricing

import (
	"context"
	"errors"
	"math"
	"testing"

	"drivebook/internal/types"
)

func TestSchedule_Price(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     int64
	}{
		{name: "zero distance is the flat fare", distance: 0, want: 5000},
		{name: "inside flat band", distance: 5, want: 5000},
		{name: "flat band boundary", distance: 10, want: 5000},
		{name: "just past flat band", distance: 11, want: 5250},
		{name: "middle tier", distance: 30, want: 10000},
		{name: "middle tier boundary", distance: 50, want: 15000},
		{name: "long tier", distance: 60, want: 15900},
		// 5000 + 2.5*250 = 5625
		{name: "fractional distance", distance: 12.5, want: 5625},
		// 5000 + 10000 + 0.3*90 = 15027
		{name: "fractional long tier rounds", distance: 50.3, want: 15027},
	}

	s := DefaultSchedule()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Price(tt.distance)
			if err != nil {
				t.Fatalf("Price() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Price(%v) = %v, want %v", tt.distance, got, tt.want)
			}
		})
	}
}

func TestSchedule_PriceRejectsInvalidDistance(t *testing.T) {
	s := DefaultSchedule()
	for _, d := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := s.Price(d); !errors.Is(err, ErrInvalidDistance) {
			t.Errorf("Price(%v): expected ErrInvalidDistance, got %v", d, err)
		}
	}
}

func TestService_Quote(t *testing.T) {
	ctx := context.Background()
	s := NewService("RWF", nil)
	km := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		req        QuoteRequest
		wantMethod Method
		wantTotal  int64
	}{
		{
			name:       "distance quote",
			req:        QuoteRequest{DistanceKm: km(30), HourlyRate: 25, Duration: types.MustDuration(2, types.UnitHours)},
			wantMethod: MethodDistance,
			wantTotal:  10000,
		},
		{
			name:       "missing distance falls back to hourly",
			req:        QuoteRequest{HourlyRate: 25, Duration: types.MustDuration(3, types.UnitHours)},
			wantMethod: MethodHourly,
			wantTotal:  75,
		},
		{
			name:       "zero distance falls back to hourly",
			req:        QuoteRequest{DistanceKm: km(0), HourlyRate: 25, Duration: types.MustDuration(1, types.UnitDays)},
			wantMethod: MethodHourly,
			wantTotal:  600,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := s.Quote(ctx, tt.req)
			if err != nil {
				t.Fatalf("Quote() error = %v", err)
			}
			if q.Method != tt.wantMethod {
				t.Errorf("method = %s, want %s", q.Method, tt.wantMethod)
			}
			if q.Total.Amount != tt.wantTotal || q.Total.Currency != "RWF" {
				t.Errorf("total = %+v, want %d RWF", q.Total, tt.wantTotal)
			}
			if q.Base != q.Total {
				t.Errorf("expected base %+v to equal total %+v", q.Base, q.Total)
			}
		})
	}
}

func TestService_QuoteErrors(t *testing.T) {
	ctx := context.Background()
	s := NewService("RWF", nil)
	neg := -4.0
	if _, err := s.Quote(ctx, QuoteRequest{DistanceKm: &neg, Duration: types.MustDuration(1, types.UnitHours)}); !errors.Is(err, ErrInvalidDistance) {
		t.Fatalf("expected ErrInvalidDistance, got %v", err)
	}
	if _, err := s.Quote(ctx, QuoteRequest{HourlyRate: 25}); !errors.Is(err, types.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

type stubRoutes struct {
	km  float64
	err error
}

func (s stubRoutes) DistanceKm(_ context.Context, _, _ types.Point) (float64, error) {
	return s.km, s.err
}

func TestService_QuoteRoute(t *testing.T) {
	ctx := context.Background()
	pickup := types.Point{Lat: -1.9441, Lng: 30.0619}
	dropoff := types.Point{Lat: -1.9706, Lng: 30.1044}

	q, err := NewService("RWF", stubRoutes{km: 60}).QuoteRoute(ctx, pickup, dropoff)
	if err != nil {
		t.Fatalf("QuoteRoute: %v", err)
	}
	if q.Source != "maps" || q.Fare.Amount != 15900 {
		t.Fatalf("unexpected route quote %+v", q)
	}

	q, err = NewService("RWF", nil).QuoteRoute(ctx, pickup, dropoff)
	if err != nil {
		t.Fatalf("QuoteRoute fallback: %v", err)
	}
	if q.Source != "haversine" || q.DistanceKm < 5 || q.DistanceKm > 6 {
		t.Fatalf("unexpected fallback quote %+v", q)
	}
	if q.Fare.Amount != 5000 {
		t.Fatalf("short trip should be the flat fare, got %d", q.Fare.Amount)
	}

	boom := errors.New("quota exceeded")
	if _, err := NewService("RWF", stubRoutes{err: boom}).QuoteRoute(ctx, pickup, dropoff); !errors.Is(err, boom) {
		t.Fatalf("expected route error, got %v", err)
	}
}
