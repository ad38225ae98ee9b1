// README: Kafka wire format for notifications between the API and the notifier worker.
package notification

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const (
	Topic = "gigmarket.notifications"
	// DeadLetterTopic receives envelopes the notifier could not deliver after its retries.
	DeadLetterTopic = "gigmarket.notifications.dead"
)

// Envelope is the message value on Topic.
type Envelope struct {
	Version      int          `json:"version"`
	Notification Notification `json:"notification"`
}

// Enqueuer is satisfied by *kafkax.Producer.
type Enqueuer interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// KafkaPublisher keys messages by recipient so one user's notifications stay ordered.
type KafkaPublisher struct {
	q Enqueuer
}

func NewKafkaPublisher(q Enqueuer) *KafkaPublisher {
	return &KafkaPublisher{q: q}
}

func (p *KafkaPublisher) Publish(_ context.Context, n Notification) error {
	b, err := json.Marshal(Envelope{Version: 1, Notification: n})
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	return errors.Wrap(
		p.q.Publish([]byte(n.RecipientID), b, kafka.Header{Key: "type", Value: []byte(n.Type)}),
		"enqueue notification",
	)
}

func decodeEnvelope(b []byte) (Notification, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Notification{}, errors.Wrap(err, "decode notification")
	}
	if env.Notification.RecipientID == "" {
		return Notification{}, errors.New("notification without recipient")
	}
	return env.Notification, nil
}
