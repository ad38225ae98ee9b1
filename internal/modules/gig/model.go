// README: Gig listing fields the order core reads; gig CRUD lives elsewhere.
package gig

import (
	"errors"

	"gigmarket/internal/types"
)

var ErrNotFound = errors.New("gig not found")

type Gig struct {
	ID            types.ID
	ProviderID    types.ID
	Title         string
	DeliveryDays  int
	Price         types.Money
	AverageRating float64
	ReviewCount   int
}
