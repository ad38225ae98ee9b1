// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"gigmarket/internal/types"
)

const uniqueViolation = "23505"

// StatusUpdate is a compare-and-swap write: it applies only while the stored order
// still has status From at StatusVersion Version.
type StatusUpdate struct {
	ID                types.ID
	From              Status
	To                Status
	Version           int
	DeliveryFiles     []DeliveryFile
	DeliveryMessage   *string
	RevisionFeedback  *string
	IncrementRevision bool
	CancelledBy       *types.ID
	CancelReason      *string
}

// applyTo returns o as it reads after the update committed.
func (u StatusUpdate) applyTo(o Order, now time.Time) Order {
	o.Status = u.To
	o.StatusVersion = u.Version + 1
	if u.DeliveryFiles != nil {
		o.DeliveryFiles = append([]DeliveryFile(nil), u.DeliveryFiles...)
	}
	if u.DeliveryMessage != nil {
		o.DeliveryMessage = *u.DeliveryMessage
	}
	if u.RevisionFeedback != nil {
		o.RevisionFeedback = u.RevisionFeedback
	}
	if u.IncrementRevision {
		o.RevisionCount++
	}
	if u.CancelledBy != nil {
		o.CancelledBy = u.CancelledBy
	}
	if u.CancelReason != nil {
		o.CancelReason = u.CancelReason
	}
	t := now
	switch u.To {
	case StatusAccepted:
		o.AcceptedAt = &t
	case StatusInProgress:
		if o.StartedAt == nil {
			o.StartedAt = &t
		}
	case StatusInReview:
		o.DeliveredAt = &t
	case StatusCompleted:
		o.CompletedAt = &t
	case StatusCancelled:
		o.CancelledAt = &t
	}
	return o
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, gig_id, client_id, provider_id, price, currency,
			status, status_version, payment_ref, deadline, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)`,
		string(o.ID),
		string(o.GigID),
		string(o.ClientID),
		string(o.ProviderID),
		o.Price.Amount,
		o.Price.Currency,
		string(o.Status),
		o.StatusVersion,
		o.PaymentRef,
		o.Deadline,
		o.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Wrapf(ErrConflict, "payment %s already booked", o.PaymentRef)
	}
	return errors.Wrap(err, "insert order")
}

const selectOrder = `
	SELECT id, gig_id, client_id, provider_id, price, currency,
	       status, status_version, payment_ref, deadline,
	       delivery_files, delivery_message, revision_count, revision_feedback,
	       client_reviewed, provider_reviewed, cancelled_by, cancellation_reason,
	       created_at, accepted_at, started_at, delivered_at, completed_at, cancelled_at
	FROM orders`

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, selectOrder+` WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

func (s *Store) ListByParticipant(ctx context.Context, userID types.ID, limit int) ([]*Order, error) {
	return s.queryOrders(ctx, selectOrder+`
		WHERE client_id = $1 OR provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(userID), limit)
}

// ListRecent is the admin view across every order.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Order, error) {
	return s.queryOrders(ctx, selectOrder+`
		ORDER BY created_at DESC
		LIMIT $1`, limit)
}

func (s *Store) queryOrders(ctx context.Context, q string, args ...any) ([]*Order, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "list orders")
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var files []DeliveryFile
	var deliveryMessage, revisionFeedback, cancelledBy, cancelReason sql.NullString
	var acceptedAt, startedAt, deliveredAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.GigID, &o.ClientID, &o.ProviderID, &o.Price.Amount, &o.Price.Currency,
		&o.Status, &o.StatusVersion, &o.PaymentRef, &o.Deadline,
		&files, &deliveryMessage, &o.RevisionCount, &revisionFeedback,
		&o.ClientReviewed, &o.ProviderReviewed, &cancelledBy, &cancelReason,
		&o.CreatedAt, &acceptedAt, &startedAt, &deliveredAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	o.DeliveryFiles = files
	o.DeliveryMessage = deliveryMessage.String
	if revisionFeedback.Valid {
		o.RevisionFeedback = &revisionFeedback.String
	}
	if cancelledBy.Valid {
		id := types.ID(cancelledBy.String)
		o.CancelledBy = &id
	}
	if cancelReason.Valid {
		o.CancelReason = &cancelReason.String
	}
	o.AcceptedAt = toTimePtr(acceptedAt)
	o.StartedAt = toTimePtr(startedAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	o.CompletedAt = toTimePtr(completedAt)
	o.CancelledAt = toTimePtr(cancelledAt)
	return &o, nil
}

func (s *Store) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	var files any
	if u.DeliveryFiles != nil {
		files = u.DeliveryFiles
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    delivery_files = COALESCE($2::jsonb, delivery_files),
		    delivery_message = COALESCE($3, delivery_message),
		    revision_feedback = COALESCE($4, revision_feedback),
		    revision_count = revision_count + CASE WHEN $5 THEN 1 ELSE 0 END,
		    cancelled_by = COALESCE($6, cancelled_by),
		    cancellation_reason = COALESCE($7, cancellation_reason),
		    accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END,
		    started_at = CASE WHEN $1 = 'in_progress' THEN COALESCE(started_at, NOW()) ELSE started_at END,
		    delivered_at = CASE WHEN $1 = 'in_review' THEN NOW() ELSE delivered_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $8 AND status = $9 AND status_version = $10`,
		string(u.To),
		files,
		u.DeliveryMessage,
		u.RevisionFeedback,
		u.IncrementRevision,
		toStringPtr(u.CancelledBy),
		u.CancelReason,
		string(u.ID),
		string(u.From),
		u.Version,
	)
	if err != nil {
		return false, errors.Wrap(err, "update order status")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_role, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorRole),
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return errors.Wrap(err, "insert order event")
}

func (s *Store) ListEvents(ctx context.Context, id types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_role, actor_id, created_at
		FROM order_state_events
		WHERE order_id = $1
		ORDER BY id`, string(id))
	if err != nil {
		return nil, errors.Wrap(err, "list order events")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID sql.NullString
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.ActorRole, &actorID, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan order event")
		}
		if actorID.Valid {
			a := types.ID(actorID.String)
			e.ActorID = &a
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "list order events")
}

// SetReviewed flips the per-direction review flag; it reports false when the flag
// already had the requested value.
func (s *Store) SetReviewed(ctx context.Context, id types.ID, p Party, reviewed bool) (bool, error) {
	var q string
	switch p {
	case PartyClient:
		q = `UPDATE orders SET client_reviewed = $1 WHERE id = $2 AND client_reviewed <> $1`
	case PartyProvider:
		q = `UPDATE orders SET provider_reviewed = $1 WHERE id = $2 AND provider_reviewed <> $1`
	default:
		return false, errors.Errorf("no review flag for party %q", p)
	}
	tag, err := s.db.Exec(ctx, q, reviewed, string(id))
	if err != nil {
		return false, errors.Wrap(err, "update review flag")
	}
	return tag.RowsAffected() == 1, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
