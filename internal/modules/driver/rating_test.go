package driver

import (
	"errors"
	"math"
	"testing"

	"drivebook/internal/types"
)

func TestUpdateRating(t *testing.T) {
	r := DefaultRating()
	steps := []struct {
		score     int
		wantAvg   float64
		wantCount int
	}{
		{3, 3.0, 1},
		{5, 4.0, 2},
		{1, 3.0, 3},
		{4, 3.25, 4},
	}
	for _, s := range steps {
		var err error
		r, err = UpdateRating(r, s.score)
		if err != nil {
			t.Fatalf("UpdateRating(%d): %v", s.score, err)
		}
		if math.Abs(r.Average-s.wantAvg) > 1e-9 || r.Count != s.wantCount {
			t.Fatalf("after %d got %+v, want avg %v count %d", s.score, r, s.wantAvg, s.wantCount)
		}
	}
}

func TestUpdateRatingRejectsOutOfRange(t *testing.T) {
	start := Rating{Average: 4.5, Count: 2}
	for _, score := range []int{0, 6, -1} {
		got, err := UpdateRating(start, score)
		if !errors.Is(err, ErrInvalidRating) || !errors.Is(err, types.ErrValidation) {
			t.Errorf("score %d: expected ErrInvalidRating, got %v", score, err)
		}
		if got != start {
			t.Errorf("score %d: rating changed to %+v", score, got)
		}
	}
}
