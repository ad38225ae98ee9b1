// README: Notification inbox store backed by PostgreSQL.
package notification

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"
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

// Insert persists n; a dedupKey already stored yields ErrDuplicate.
func (s *Store) Insert(ctx context.Context, n *Notification, dedupKey string) error {
	var key sql.NullString
	if dedupKey != "" {
		key = sql.NullString{String: dedupKey, Valid: true}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, type, message, link, dedup_key, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(n.ID),
		string(n.RecipientID),
		n.Type,
		n.Message,
		n.Link,
		key,
		n.Read,
		n.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return errors.Wrap(err, "insert notification")
}

func (s *Store) ListByRecipient(ctx context.Context, recipient types.ID, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, recipient_id, type, message, link, read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3`, string(recipient), unreadOnly, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "list notifications")
}

// MarkRead returns ErrNotFound when the notification does not belong to recipient.
func (s *Store) MarkRead(ctx context.Context, id, recipient types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND recipient_id = $2`, string(id), string(recipient))
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
