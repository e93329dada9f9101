// README: Reviews received by a user, read from the ratings stored on bookings.
package booking

import (
	"context"
	"sort"
	"time"

	"drivebook/internal/types"
)

type Review struct {
	BookingID  types.ID  `json:"booking_id"`
	ReviewerID types.ID  `json:"reviewer_id"`
	RevieweeID types.ID  `json:"reviewee_id"`
	Score      int       `json:"score"`
	Text       string    `json:"text,omitempty"`
	RatedAt    time.Time `json:"rated_at"`
}

// Reviews lists ratings userID received, newest first. Customer scores on the user's drives
// and driver scores on the user's own bookings both count.
func (s *Service) Reviews(ctx context.Context, userID types.ID) ([]Review, error) {
	driven, err := s.store.ListByDriver(ctx, userID)
	if err != nil {
		return nil, err
	}
	booked, err := s.store.ListByCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Review, 0)
	for _, b := range driven {
		r := b.Rating
		if r.CustomerScore != nil && r.CustomerRatedAt != nil {
			out = append(out, Review{
				BookingID:  b.ID,
				ReviewerID: b.CustomerID,
				RevieweeID: userID,
				Score:      *r.CustomerScore,
				Text:       r.CustomerText,
				RatedAt:    *r.CustomerRatedAt,
			})
		}
	}
	for _, b := range booked {
		r := b.Rating
		if r.DriverScore != nil && r.DriverRatedAt != nil {
			out = append(out, Review{
				BookingID:  b.ID,
				ReviewerID: b.DriverID,
				RevieweeID: userID,
				Score:      *r.DriverScore,
				Text:       r.DriverText,
				RatedAt:    *r.DriverRatedAt,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RatedAt.Equal(out[j].RatedAt) {
			return out[i].RatedAt.After(out[j].RatedAt)
		}
		return out[i].BookingID < out[j].BookingID
	})
	return out, nil
}
