// README: Review directions and the published reputation statistic.
package rating

import (
	"errors"

	"gigmarket/internal/types"
)

var (
	ErrNotFound   = errors.New("rating subject not found")
	ErrBadRequest = errors.New("bad request")
)

// Direction is the side of an order a review flows from.
type Direction string

const (
	// DirectionClient is a client reviewing the provider.
	DirectionClient Direction = "client"
	// DirectionStudent is a provider reviewing the client.
	DirectionStudent Direction = "student"
)

func ParseDirection(v string) (Direction, bool) {
	switch Direction(v) {
	case DirectionClient, DirectionStudent:
		return Direction(v), true
	}
	return "", false
}

// ReviewerRole is the role that writes reviews in this direction.
func (d Direction) ReviewerRole() types.Role {
	if d == DirectionStudent {
		return types.RoleProvider
	}
	return types.RoleClient
}

// Stat is the materialized reputation of one subject in one direction.
type Stat struct {
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// Aggregate is the mean and count of ratings; an empty set is 0/0.
func Aggregate(ratings []int) Stat {
	if len(ratings) == 0 {
		return Stat{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return Stat{
		AverageRating: float64(sum) / float64(len(ratings)),
		ReviewCount:   len(ratings),
	}
}
