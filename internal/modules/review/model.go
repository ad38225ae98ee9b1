// README: Review model and errors.
package review

import (
	"errors"
	"time"

	"gigmarket/internal/modules/rating"
	"gigmarket/internal/types"
)

var (
	ErrNotFound     = errors.New("review not found")
	ErrForbidden    = errors.New("actor may not modify this review")
	ErrInvalidState = errors.New("order cannot be reviewed")
	ErrConflict     = errors.New("review already exists")
	ErrBadRequest   = errors.New("bad request")
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID         types.ID         `json:"id"`
	OrderID    types.ID         `json:"order_id"`
	GigID      types.ID         `json:"gig_id"`
	ReviewerID types.ID         `json:"reviewer_id"`
	RevieweeID types.ID         `json:"reviewee_id"`
	Direction  rating.Direction `json:"direction"`
	Rating     int              `json:"rating"`
	Comment    string           `json:"comment"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func validRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}
