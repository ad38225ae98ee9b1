// README: User fields the order core reads: role, contact channels and reputation.
package user

import (
	"errors"

	"gigmarket/internal/types"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID                  types.ID
	Role                types.Role
	Name                string
	Email               string
	DeviceToken         string
	ProviderRating      float64
	ProviderReviewCount int
	ClientRating        float64
	ClientReviewCount   int
}
