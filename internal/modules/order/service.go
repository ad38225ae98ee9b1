// README: Order service implements state transitions and persistence.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gigmarket/internal/modules/gig"
	"gigmarket/internal/modules/notification"
	"gigmarket/internal/redisx"
	"gigmarket/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrForbidden         = errors.New("actor may not perform this transition")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidState      = errors.New("order precondition not met")
	ErrConflict          = errors.New("order state conflict")
	ErrBadRequest        = errors.New("bad request")
)

// Repository is the persistence the state machine needs; *Store implements it.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	ListByParticipant(ctx context.Context, userID types.ID, limit int) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, id types.ID) ([]Event, error)
	SetReviewed(ctx context.Context, id types.ID, p Party, reviewed bool) (bool, error)
}

type GigLookup interface {
	Get(ctx context.Context, id types.ID) (*gig.Gig, error)
}

type Notifier interface {
	Emit(ctx context.Context, in notification.Intent) error
}

// FileVerifier confirms delivered files exist in storage.
type FileVerifier interface {
	Verify(ctx context.Context, fileIDs []string) error
}

// IdempotencyGuard deduplicates payment confirmations before they reach the database.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Deps struct {
	Repo        Repository
	Gigs        GigLookup
	Notifier    Notifier
	Files       FileVerifier
	Idempotency IdempotencyGuard
	Logger      logrus.FieldLogger
	Now         func() time.Time
}

type Service struct {
	repo   Repository
	gigs   GigLookup
	notify Notifier
	files  FileVerifier
	idem   IdempotencyGuard
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewService(deps Deps) *Service {
	s := &Service{
		repo:   deps.Repo,
		gigs:   deps.Gigs,
		notify: deps.Notifier,
		files:  deps.Files,
		idem:   deps.Idempotency,
		log:    deps.Logger,
		now:    deps.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// PaymentConfirmed is the payment collaborator's event that books an order.
type PaymentConfirmed struct {
	GigID      types.ID
	ClientID   types.ID
	ProviderID types.ID
	Amount     types.Money
	PaymentRef string
}

type TransitionCommand struct {
	OrderID types.ID
	Actor   types.Actor
	Target  Status
	Payload Payload
}

type DeliveryCommand struct {
	OrderID types.ID
	Actor   types.Actor
	Files   []DeliveryFile
	Message string
}

var systemActor = types.Actor{Role: types.RoleSystem}

// Book creates an order in booked state from a confirmed payment.
func (s *Service) Book(ctx context.Context, ev PaymentConfirmed) (*Order, error) {
	if ev.GigID == "" || ev.ClientID == "" || ev.ProviderID == "" || strings.TrimSpace(ev.PaymentRef) == "" {
		return nil, ErrBadRequest
	}
	if ev.Amount.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBadRequest)
	}

	key := redisx.OrderBookKey(ev.PaymentRef)
	claimed := false
	if s.idem != nil {
		ok, err := s.idem.Claim(ctx, key, redisx.TTLIdempotency)
		if err != nil {
			// the unique index on payment_ref still rejects duplicates
			s.log.WithError(err).WithField("payment_ref", ev.PaymentRef).Warn("idempotency claim failed")
		} else if !ok {
			return nil, fmt.Errorf("%w: payment %s already booked", ErrConflict, ev.PaymentRef)
		}
		claimed = ok
	}

	o, err := s.book(ctx, ev)
	if err != nil && claimed && !errors.Is(err, ErrConflict) {
		if relErr := s.idem.Release(ctx, key); relErr != nil {
			s.log.WithError(relErr).WithField("payment_ref", ev.PaymentRef).Warn("idempotency release failed")
		}
	}
	return o, err
}

func (s *Service) book(ctx context.Context, ev PaymentConfirmed) (*Order, error) {
	g, err := s.gigs.Get(ctx, ev.GigID)
	if errors.Is(err, gig.ErrNotFound) {
		return nil, fmt.Errorf("%w: gig %s", ErrNotFound, ev.GigID)
	}
	if err != nil {
		return nil, err
	}
	if g.ProviderID != ev.ProviderID {
		return nil, fmt.Errorf("%w: provider does not own gig", ErrBadRequest)
	}
	if ev.ClientID == ev.ProviderID {
		return nil, fmt.Errorf("%w: provider cannot book own gig", ErrBadRequest)
	}

	now := s.now()
	o := &Order{
		ID:            types.NewID(),
		GigID:         ev.GigID,
		ClientID:      ev.ClientID,
		ProviderID:    ev.ProviderID,
		Price:         ev.Amount,
		Status:        StatusNone,
		StatusVersion: 0,
		PaymentRef:    ev.PaymentRef,
		Deadline:      now.Add(time.Duration(g.DeliveryDays) * 24 * time.Hour),
		CreatedAt:     now,
	}
	dec, err := Authorize(systemActor, o, StatusBooked, Payload{})
	if err != nil {
		return nil, err
	}
	o.Status = StatusBooked
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	// The row is committed; follow-ups must not die with the caller's request.
	committed := context.WithoutCancel(ctx)
	s.recordEvent(committed, o.ID, StatusNone, StatusBooked, systemActor)
	s.emitAll(committed, o, dec.Intents)
	return o, nil
}

// Transition applies a status change requested through the generic status endpoint.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Order, error) {
	o, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if deliveryOnly(cmd.Target) {
		return nil, fmt.Errorf("%w: %s is reached by submitting a delivery", ErrInvalidTransition, cmd.Target)
	}
	return s.apply(ctx, o, cmd.Actor, cmd.Target, cmd.Payload)
}

// SubmitDelivery attaches delivered files and moves the order to in_review.
func (s *Service) SubmitDelivery(ctx context.Context, cmd DeliveryCommand) (*Order, error) {
	o, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	p := Payload{Files: cmd.Files, Message: strings.TrimSpace(cmd.Message)}
	if _, err := Authorize(cmd.Actor, o, StatusInReview, p); err != nil {
		return nil, err
	}
	if s.files != nil {
		ids := make([]string, len(cmd.Files))
		for i, f := range cmd.Files {
			ids[i] = f.ID
		}
		if err := s.files.Verify(ctx, ids); err != nil {
			return nil, err
		}
	}
	return s.apply(ctx, o, cmd.Actor, StatusInReview, p)
}

func (s *Service) apply(ctx context.Context, o *Order, actor types.Actor, to Status, p Payload) (*Order, error) {
	dec, err := Authorize(actor, o, to, p)
	if err != nil {
		return nil, err
	}

	upd := StatusUpdate{
		ID:      o.ID,
		From:    o.Status,
		To:      to,
		Version: o.StatusVersion,
	}
	switch to {
	case StatusInReview:
		upd.DeliveryFiles = p.Files
		upd.DeliveryMessage = &p.Message
	case StatusRevisionRequested:
		fb := strings.TrimSpace(p.Feedback)
		upd.RevisionFeedback = &fb
		upd.IncrementRevision = true
	case StatusCancelled:
		by := actor.ID
		upd.CancelledBy = &by
		if r := strings.TrimSpace(p.Reason); r != "" {
			upd.CancelReason = &r
		}
	}

	ok, err := s.repo.UpdateStatus(ctx, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, o)
	}

	updated := upd.applyTo(*o, s.now())
	committed := context.WithoutCancel(ctx)
	s.recordEvent(committed, o.ID, o.Status, to, actor)
	s.emitAll(committed, &updated, dec.Intents)
	s.log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"from":     o.Status,
		"to":       to,
		"actor":    actor.ID,
		"party":    dec.Party,
	}).Info("order transitioned")
	return &updated, nil
}

// lostRace decides the error after a compare-and-swap matched no row.
func (s *Service) lostRace(ctx context.Context, o *Order) error {
	cur, err := s.repo.Get(ctx, o.ID)
	if err != nil {
		return err
	}
	if cur.Status != o.Status {
		return fmt.Errorf("%w: order is now %s", ErrInvalidTransition, cur.Status)
	}
	return ErrConflict
}

func (s *Service) recordEvent(ctx context.Context, id types.ID, from, to Status, actor types.Actor) {
	var actorID *types.ID
	if actor.ID != "" {
		a := actor.ID
		actorID = &a
	}
	err := s.repo.AppendEvent(ctx, &Event{
		OrderID:    id,
		FromStatus: from,
		ToStatus:   to,
		ActorRole:  actor.Role,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
	if err != nil {
		s.log.WithError(err).WithField("order_id", id).Warn("append order event failed")
	}
}

// emitAll runs after the state write has committed; failures never reach the caller.
func (s *Service) emitAll(ctx context.Context, o *Order, intents []notification.Intent) {
	if s.notify == nil {
		return
	}
	for _, in := range intents {
		in.Key = fmt.Sprintf("order:%s:v%d:%s", o.ID, o.StatusVersion, in.RecipientID)
		if err := s.notify.Emit(ctx, in); err != nil && !errors.Is(err, notification.ErrDuplicate) {
			s.log.WithError(err).WithFields(logrus.Fields{
				"order_id":  o.ID,
				"recipient": in.RecipientID,
				"type":      in.Type,
			}).Warn("notification emit failed")
		}
	}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// GetFor returns the order when the actor is one of its parties or an admin.
func (s *Service) GetFor(ctx context.Context, id types.ID, actor types.Actor) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ResolveParty(actor, o) == PartyNone {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListFor returns the actor's own orders, newest first; admins see every order.
func (s *Service) ListFor(ctx context.Context, actor types.Actor, limit int) ([]*Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if actor.IsAdmin() {
		return s.repo.ListRecent(ctx, limit)
	}
	return s.repo.ListByParticipant(ctx, actor.ID, limit)
}

// EventsFor returns the order's status history to its parties and admins.
func (s *Service) EventsFor(ctx context.Context, id types.ID, actor types.Actor) ([]Event, error) {
	if _, err := s.GetFor(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

// MarkReviewed flags the order as reviewed from the given side; a second call conflicts.
func (s *Service) MarkReviewed(ctx context.Context, id types.ID, p Party) error {
	ok, err := s.repo.SetReviewed(ctx, id, p, true)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: already reviewed by %s", ErrConflict, p)
	}
	return nil
}

// ClearReviewed drops the flag after the review it stood for was deleted.
func (s *Service) ClearReviewed(ctx context.Context, id types.ID, p Party) error {
	_, err := s.repo.SetReviewed(ctx, id, p, false)
	return err
}
