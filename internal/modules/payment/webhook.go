// README: Stripe webhook processing: a succeeded payment intent books the order.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"gigmarket/internal/modules/order"
	"gigmarket/internal/types"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrBadPayload       = errors.New("malformed payment event")
)

const EventPaymentSucceeded = "payment_intent.succeeded"

// Metadata keys the checkout flow sets on the payment intent.
const (
	MetaGigID      = "gig_id"
	MetaClientID   = "client_id"
	MetaProviderID = "provider_id"
)

type Booker interface {
	Book(ctx context.Context, ev order.PaymentConfirmed) (*order.Order, error)
}

type Processor struct {
	secret string
	booker Booker
	log    logrus.FieldLogger
}

func NewProcessor(secret string, booker Booker, log logrus.FieldLogger) *Processor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{secret: secret, booker: booker, log: log}
}

// Result tells the caller what a webhook delivery did.
type Result struct {
	EventType string
	Handled   bool
	OrderID   types.ID
	Duplicate bool
}

// Handle verifies the signature and books the order for payment_intent.succeeded.
// Other event types are acknowledged without action. A redelivered event is not an error.
func (p *Processor) Handle(ctx context.Context, payload []byte, signature string) (Result, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	res := Result{EventType: string(ev.Type)}
	if ev.Type != EventPaymentSucceeded {
		return res, nil
	}

	confirmed, err := confirmationFrom(ev)
	if err != nil {
		return res, err
	}

	entry := p.log.WithFields(logrus.Fields{
		"event_id":    ev.ID,
		"payment_ref": confirmed.PaymentRef,
		"gig_id":      confirmed.GigID,
	})
	o, err := p.booker.Book(ctx, confirmed)
	switch {
	case errors.Is(err, order.ErrConflict):
		entry.Info("payment already booked")
		res.Handled, res.Duplicate = true, true
		return res, nil
	case err != nil:
		entry.WithError(err).Error("booking from payment failed")
		return res, err
	}
	entry.WithField("order_id", o.ID).Info("order booked from payment")
	res.Handled, res.OrderID = true, o.ID
	return res, nil
}

func confirmationFrom(ev stripe.Event) (order.PaymentConfirmed, error) {
	if ev.Data == nil {
		return order.PaymentConfirmed{}, ErrBadPayload
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return order.PaymentConfirmed{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	c := order.PaymentConfirmed{
		GigID:      types.ID(pi.Metadata[MetaGigID]),
		ClientID:   types.ID(pi.Metadata[MetaClientID]),
		ProviderID: types.ID(pi.Metadata[MetaProviderID]),
		Amount:     types.Money{Amount: pi.Amount, Currency: strings.ToUpper(string(pi.Currency))},
		PaymentRef: pi.ID,
	}
	if c.GigID == "" || c.ClientID == "" || c.ProviderID == "" || c.PaymentRef == "" {
		return order.PaymentConfirmed{}, fmt.Errorf("%w: payment intent %s lacks order metadata", ErrBadPayload, pi.ID)
	}
	return c, nil
}
