// README: Running-average rating aggregation.
package driver

import "drivebook/internal/types"

const (
	MinScore = 1
	MaxScore = 5
)

var ErrInvalidRating = types.NewValidationError("rating", "score must be between 1 and 5")

func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return ErrInvalidRating
	}
	return nil
}

// UpdateRating folds one more score into the running average.
func UpdateRating(r Rating, score int) (Rating, error) {
	if err := ValidateScore(score); err != nil {
		return r, err
	}
	total := r.Average*float64(r.Count) + float64(score)
	count := r.Count + 1
	return Rating{Average: total / float64(count), Count: count}, nil
}
