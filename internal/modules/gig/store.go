// README: Gig store backed by PostgreSQL (read side only).
package gig

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"gigmarket/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Gig, error) {
	var g Gig
	err := s.db.QueryRow(ctx, `
		SELECT id, provider_id, title, delivery_days, price, currency, average_rating, review_count
		FROM gigs
		WHERE id = $1`, string(id),
	).Scan(
		&g.ID, &g.ProviderID, &g.Title, &g.DeliveryDays,
		&g.Price.Amount, &g.Price.Currency, &g.AverageRating, &g.ReviewCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select gig")
	}
	return &g, nil
}
