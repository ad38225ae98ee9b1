// README: Notification service persists intents to the inbox and hands them to the delivery pipeline.
package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gigmarket/internal/redisx"
	"gigmarket/internal/types"
)

type Repository interface {
	Insert(ctx context.Context, n *Notification, dedupKey string) error
	ListByRecipient(ctx context.Context, recipient types.ID, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, recipient types.ID) error
}

// Deduper claims a logical event key once; Release gives back a claim whose write failed.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Publisher forwards a stored notification to push/e-mail delivery.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

type Service struct {
	repo  Repository
	dedup Deduper
	pub   Publisher
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(repo Repository, dedup Deduper, pub Publisher, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{repo: repo, dedup: dedup, pub: pub, log: log, now: time.Now}
}

// Emit stores the intent in the recipient's inbox and publishes it for delivery.
// A repeated Key returns ErrDuplicate. Delivery failures are logged only: the inbox row is the record.
func (s *Service) Emit(ctx context.Context, in Intent) error {
	if in.RecipientID == "" || strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.Message) == "" {
		return ErrBadRequest
	}

	dedupKey := redisx.NotificationDedupKey(in.Key)
	claimed := false
	if in.Key != "" && s.dedup != nil {
		ok, err := s.dedup.Claim(ctx, dedupKey, redisx.TTLDedup)
		if err != nil {
			s.log.WithError(err).WithField("key", in.Key).Warn("notification dedup unavailable")
		} else if !ok {
			return ErrDuplicate
		}
		claimed = ok
	}

	n := Notification{
		ID:          types.NewID(),
		RecipientID: in.RecipientID,
		Type:        in.Type,
		Message:     in.Message,
		Link:        in.Link,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Insert(ctx, &n, in.Key); err != nil {
		if claimed && !errors.Is(err, ErrDuplicate) {
			if relErr := s.dedup.Release(ctx, dedupKey); relErr != nil {
				s.log.WithError(relErr).WithField("key", in.Key).Warn("notification dedup release failed")
			}
		}
		return err
	}

	if s.pub != nil {
		if err := s.pub.Publish(ctx, n); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"notification_id": n.ID,
				"recipient":       n.RecipientID,
			}).Warn("notification publish failed")
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, recipient types.ID, unreadOnly bool, limit int) ([]Notification, error) {
	if recipient == "" {
		return nil, ErrBadRequest
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByRecipient(ctx, recipient, unreadOnly, limit)
}

func (s *Service) MarkRead(ctx context.Context, id, recipient types.ID) error {
	if id == "" || recipient == "" {
		return ErrBadRequest
	}
	return s.repo.MarkRead(ctx, id, recipient)
}
