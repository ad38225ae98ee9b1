// README: Review store backed by PostgreSQL.
package review

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"gigmarket/internal/modules/rating"
	"gigmarket/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create relies on the (order_id, role) unique index for the one-review-per-direction rule.
func (s *Store) Create(ctx context.Context, r *Review) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reviews (
			id, order_id, gig_id, reviewer_id, reviewee_id, role, rating, comment, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(r.ID),
		string(r.OrderID),
		string(r.GigID),
		string(r.ReviewerID),
		string(r.RevieweeID),
		string(r.Direction),
		r.Rating,
		r.Comment,
		r.CreatedAt,
		r.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return errors.Wrap(err, "insert review")
}

const selectReview = `
	SELECT id, order_id, gig_id, reviewer_id, reviewee_id, role, rating, comment, created_at, updated_at
	FROM reviews`

func scanReview(row pgx.Row) (*Review, error) {
	var r Review
	err := row.Scan(
		&r.ID, &r.OrderID, &r.GigID, &r.ReviewerID, &r.RevieweeID,
		&r.Direction, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Review, error) {
	r, err := scanReview(s.db.QueryRow(ctx, selectReview+` WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select review")
	}
	return r, nil
}

func (s *Store) Update(ctx context.Context, id types.ID, score int, comment string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reviews SET rating = $1, comment = $2, updated_at = $3
		WHERE id = $4`, score, comment, at, string(id))
	if err != nil {
		return errors.Wrap(err, "update review")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, string(id))
	if err != nil {
		return errors.Wrap(err, "delete review")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListByReviewee(ctx context.Context, reviewee types.ID, dir rating.Direction, limit int) ([]*Review, error) {
	rows, err := s.db.Query(ctx, selectReview+`
		WHERE reviewee_id = $1 AND role = $2
		ORDER BY created_at DESC
		LIMIT $3`, string(reviewee), string(dir), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan review")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list reviews")
}
