// README: User store backed by PostgreSQL (read side only).
package user

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

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	var u User
	var role string
	err := s.db.QueryRow(ctx, `
		SELECT id, role, name, email, COALESCE(device_token, ''),
		       provider_rating, provider_review_count, client_rating, client_review_count
		FROM users
		WHERE id = $1`, string(id),
	).Scan(
		&u.ID, &role, &u.Name, &u.Email, &u.DeviceToken,
		&u.ProviderRating, &u.ProviderReviewCount, &u.ClientRating, &u.ClientReviewCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	u.Role = types.Role(role)
	return &u, nil
}
