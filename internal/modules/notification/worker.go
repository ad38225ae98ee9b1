// README: Notifier worker fans published notifications out to delivery sinks.
package notification

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"gigmarket/internal/modules/user"
	"gigmarket/internal/types"
)

// ErrNoAddress means a sink has nowhere to deliver for this recipient.
var ErrNoAddress = errors.New("recipient has no address for this channel")

// Sink delivers one notification over one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, to *user.User, n Notification) error
}

type UserLookup interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
}

type Worker struct {
	users UserLookup
	sinks []Sink
	log   logrus.FieldLogger
}

func NewWorker(users UserLookup, log logrus.FieldLogger, sinks ...Sink) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{users: users, sinks: sinks, log: log}
}

// HandleMessage is a kafkax.Handler. Undecodable messages and unknown recipients are
// dropped. A failing sink returns an error; the consumer retries the whole message,
// so sinks that already succeeded may deliver it again.
func (w *Worker) HandleMessage(ctx context.Context, m kafka.Message) error {
	n, err := decodeEnvelope(m.Value)
	if err != nil {
		w.log.WithError(err).WithField("offset", m.Offset).Error("dropping malformed notification")
		return nil
	}
	return w.Deliver(ctx, n)
}

func (w *Worker) Deliver(ctx context.Context, n Notification) error {
	entry := w.log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"recipient":       n.RecipientID,
		"type":            n.Type,
	})

	to, err := w.users.Get(ctx, n.RecipientID)
	if errors.Is(err, user.ErrNotFound) {
		entry.Warn("recipient not found; skipping delivery")
		return nil
	}
	if err != nil {
		return err
	}

	var failed []string
	for _, s := range w.sinks {
		err := s.Deliver(ctx, to, n)
		switch {
		case err == nil:
			entry.WithField("sink", s.Name()).Debug("notification delivered")
		case errors.Is(err, ErrNoAddress):
			entry.WithField("sink", s.Name()).Debug("no address for sink")
		default:
			entry.WithError(err).WithField("sink", s.Name()).Warn("notification delivery failed")
			failed = append(failed, s.Name())
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("delivery failed via %s", strings.Join(failed, ", "))
	}
	return nil
}
