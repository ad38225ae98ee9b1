// README: Rating store: reads review ratings and owns the stat columns of users and gigs.
package rating

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

func (s *Store) UserRatings(ctx context.Context, reviewee types.ID, dir Direction) ([]int, error) {
	return s.ratings(ctx, `SELECT rating FROM reviews WHERE reviewee_id = $1 AND role = $2`, string(reviewee), string(dir))
}

func (s *Store) GigRatings(ctx context.Context, gigID types.ID) ([]int, error) {
	return s.ratings(ctx, `SELECT rating FROM reviews WHERE gig_id = $1 AND role = $2`, string(gigID), string(DirectionClient))
}

func (s *Store) ratings(ctx context.Context, q string, args ...any) ([]int, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select ratings")
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[int])
	return out, errors.Wrap(err, "collect ratings")
}

// userColumns maps a direction onto the stat columns of its reviewee.
func userColumns(dir Direction) (avg, count string) {
	if dir == DirectionStudent {
		return "client_rating", "client_review_count"
	}
	return "provider_rating", "provider_review_count"
}

func (s *Store) WriteUserStat(ctx context.Context, id types.ID, dir Direction, st Stat) error {
	avg, count := userColumns(dir)
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET `+avg+` = $1, `+count+` = $2 WHERE id = $3`,
		st.AverageRating, st.ReviewCount, string(id))
	if err != nil {
		return errors.Wrap(err, "update user stat")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) WriteGigStat(ctx context.Context, id types.ID, st Stat) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE gigs SET average_rating = $1, review_count = $2 WHERE id = $3`,
		st.AverageRating, st.ReviewCount, string(id))
	if err != nil {
		return errors.Wrap(err, "update gig stat")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ReadUserStat(ctx context.Context, id types.ID, dir Direction) (Stat, error) {
	avg, count := userColumns(dir)
	var st Stat
	err := s.db.QueryRow(ctx,
		`SELECT `+avg+`, `+count+` FROM users WHERE id = $1`, string(id),
	).Scan(&st.AverageRating, &st.ReviewCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stat{}, ErrNotFound
	}
	return st, errors.Wrap(err, "select user stat")
}

func (s *Store) ReadGigStat(ctx context.Context, id types.ID) (Stat, error) {
	var st Stat
	err := s.db.QueryRow(ctx,
		`SELECT average_rating, review_count FROM gigs WHERE id = $1`, string(id),
	).Scan(&st.AverageRating, &st.ReviewCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stat{}, ErrNotFound
	}
	return st, errors.Wrap(err, "select gig stat")
}
