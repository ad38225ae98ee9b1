// README: Review lifecycle: submit, edit and delete reviews, keeping reputation in sync.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gigmarket/internal/modules/notification"
	"gigmarket/internal/modules/order"
	"gigmarket/internal/modules/rating"
	"gigmarket/internal/types"
)

type Repository interface {
	Create(ctx context.Context, r *Review) error
	Get(ctx context.Context, id types.ID) (*Review, error)
	Update(ctx context.Context, id types.ID, score int, comment string, at time.Time) error
	Delete(ctx context.Context, id types.ID) error
	ListByReviewee(ctx context.Context, reviewee types.ID, dir rating.Direction, limit int) ([]*Review, error)
}

// Orders is the part of the order service reviews depend on.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	MarkReviewed(ctx context.Context, id types.ID, p order.Party) error
	ClearReviewed(ctx context.Context, id types.ID, p order.Party) error
}

type Ratings interface {
	Recompute(ctx context.Context, subject types.ID, dir rating.Direction) (rating.Stat, error)
	RecomputeGig(ctx context.Context, gigID types.ID) (rating.Stat, error)
}

type Notifier interface {
	Emit(ctx context.Context, in notification.Intent) error
}

type Service struct {
	repo    Repository
	orders  Orders
	ratings Ratings
	notify  Notifier
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(repo Repository, orders Orders, ratings Ratings, notify Notifier, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{repo: repo, orders: orders, ratings: ratings, notify: notify, log: log, now: time.Now}
}

type SubmitCommand struct {
	OrderID   types.ID
	Actor     types.Actor
	Rating    int
	Comment   string
	Direction rating.Direction
}

type UpdateCommand struct {
	ReviewID types.ID
	Actor    types.Actor
	Rating   *int
	Comment  *string
}

// party is the order side that writes reviews in dir.
func party(dir rating.Direction) order.Party {
	if dir == rating.DirectionStudent {
		return order.PartyProvider
	}
	return order.PartyClient
}

// Submit creates the single review allowed per order and direction.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Review, error) {
	if _, ok := rating.ParseDirection(string(cmd.Direction)); !ok {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrBadRequest, cmd.Direction)
	}
	if cmd.Actor.Role != cmd.Direction.ReviewerRole() {
		return nil, ErrForbidden
	}

	o, err := s.orders.Get(ctx, cmd.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, cmd.OrderID)
	}
	if err != nil {
		return nil, err
	}

	p := party(cmd.Direction)
	reviewer, reviewee := o.ClientID, o.ProviderID
	if p == order.PartyProvider {
		reviewer, reviewee = o.ProviderID, o.ClientID
	}
	if o.Status != order.StatusCompleted {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, o.Status)
	}
	if cmd.Actor.ID != reviewer {
		return nil, fmt.Errorf("%w: order does not belong to reviewer", ErrInvalidState)
	}
	if !validRating(cmd.Rating) {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrBadRequest, MinRating, MaxRating)
	}
	if o.Reviewed(p) {
		return nil, ErrConflict
	}

	now := s.now()
	r := &Review{
		ID:         types.NewID(),
		OrderID:    o.ID,
		GigID:      o.GigID,
		ReviewerID: reviewer,
		RevieweeID: reviewee,
		Direction:  cmd.Direction,
		Rating:     cmd.Rating,
		Comment:    strings.TrimSpace(cmd.Comment),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	// The review is committed; the follow-ups must not die with the caller's request.
	committed := context.WithoutCancel(ctx)
	if err := s.orders.MarkReviewed(committed, o.ID, p); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_id":  o.ID,
			"review_id": r.ID,
		}).Warn("order review flag not set")
	}

	s.recompute(committed, r)
	s.emitReceived(committed, r)
	return r, nil
}

// Update edits rating and/or comment; only the reviewer or an admin may do so.
func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*Review, error) {
	r, err := s.repo.Get(ctx, cmd.ReviewID)
	if err != nil {
		return nil, err
	}
	if !mayModify(cmd.Actor, r) {
		return nil, ErrForbidden
	}
	if cmd.Rating == nil && cmd.Comment == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrBadRequest)
	}
	if cmd.Rating != nil {
		if !validRating(*cmd.Rating) {
			return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrBadRequest, MinRating, MaxRating)
		}
		r.Rating = *cmd.Rating
	}
	if cmd.Comment != nil {
		r.Comment = strings.TrimSpace(*cmd.Comment)
	}
	r.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, r.ID, r.Rating, r.Comment, r.UpdatedAt); err != nil {
		return nil, err
	}
	s.recompute(context.WithoutCancel(ctx), r)
	return r, nil
}

// Delete removes a review and reopens its direction on the order for a new one.
func (s *Service) Delete(ctx context.Context, id types.ID, actor types.Actor) error {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !mayModify(actor, r) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	committed := context.WithoutCancel(ctx)
	if err := s.orders.ClearReviewed(committed, r.OrderID, party(r.Direction)); err != nil {
		s.log.WithError(err).WithField("order_id", r.OrderID).Warn("order review flag not cleared")
	}
	s.recompute(committed, r)
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID types.ID, dir rating.Direction, limit int) ([]*Review, error) {
	if _, ok := rating.ParseDirection(string(dir)); !ok {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrBadRequest, dir)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByReviewee(ctx, userID, dir, limit)
}

func mayModify(actor types.Actor, r *Review) bool {
	return actor.IsAdmin() || (actor.ID != "" && actor.ID == r.ReviewerID)
}

// recompute refreshes the reviewee's stat and, for client reviews, the gig's.
// The review write already committed; a failure here self-heals on the next recompute.
func (s *Service) recompute(ctx context.Context, r *Review) {
	entry := s.log.WithFields(logrus.Fields{
		"review_id": r.ID,
		"subject":   r.RevieweeID,
		"direction": r.Direction,
	})
	if _, err := s.ratings.Recompute(ctx, r.RevieweeID, r.Direction); err != nil {
		entry.WithError(err).Warn("rating consistency: user recompute failed")
	}
	if r.Direction == rating.DirectionClient {
		if _, err := s.ratings.RecomputeGig(ctx, r.GigID); err != nil {
			entry.WithError(err).WithField("gig_id", r.GigID).Warn("rating consistency: gig recompute failed")
		}
	}
}

func (s *Service) emitReceived(ctx context.Context, r *Review) {
	if s.notify == nil {
		return
	}
	err := s.notify.Emit(ctx, notification.Intent{
		RecipientID: r.RevieweeID,
		Type:        notification.TypeReviewReceived,
		Message:     fmt.Sprintf("You received a %d-star review", r.Rating),
		Link:        "/orders/" + string(r.OrderID),
		Key:         "review:" + string(r.ID),
	})
	if err != nil && !errors.Is(err, notification.ErrDuplicate) {
		s.log.WithError(err).WithField("review_id", r.ID).Warn("notification emit failed")
	}
}
