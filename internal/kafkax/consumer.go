// README: Kafka consumer group reader with per-partition workers, retry and commit-on-success.
package kafkax

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// DeadLetter parks a message the handler kept failing on. A nil return lets the
// consumer commit past it.
type DeadLetter func(ctx context.Context, m kafka.Message, cause error) error

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RetryPolicy bounds the backoff between handler attempts on one message.
// After Attempts failures the message goes to the dead letter, when one is set;
// otherwise the partition keeps retrying at Max.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

var DefaultRetry = RetryPolicy{Attempts: 5, Initial: 200 * time.Millisecond, Max: 30 * time.Second}

type Consumer struct {
	r          MessageReader
	workers    int
	retry      RetryPolicy
	deadLetter DeadLetter
	log        logrus.FieldLogger
}

func NewReader(brokers []string, group, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commits are explicit
	})
}

func NewConsumer(r MessageReader, workers int, log logrus.FieldLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{r: r, workers: workers, retry: DefaultRetry, log: log}
}

func (c *Consumer) WithRetry(p RetryPolicy) *Consumer {
	if p.Initial <= 0 {
		p.Initial = DefaultRetry.Initial
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	c.retry = p
	return c
}

func (c *Consumer) WithDeadLetter(dl DeadLetter) *Consumer {
	c.deadLetter = dl
	return c
}

// Start blocks until ctx is cancelled or the reader fails. Each partition is
// handled by one worker in offset order, so a commit never passes a message
// that has not been handled or dead-lettered.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					// left uncommitted; redelivered to the next group member
					continue
				}
				c.process(ctx, id, h, m)
			}
		}(i, queues[i])
	}
	defer wg.Wait()
	closeAll := func() {
		for _, q := range queues {
			close(q)
		}
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			closeAll()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			closeAll()
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, worker int, h Handler, m kafka.Message) {
	entry := c.log.WithFields(logrus.Fields{
		"worker":    worker,
		"partition": m.Partition,
		"offset":    m.Offset,
	})

	delay := c.retry.Initial
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			entry.WithError(err).Warn("message handler failed during shutdown")
			return
		}
		if c.deadLetter != nil && c.retry.Attempts > 0 && attempt >= c.retry.Attempts {
			dlErr := c.deadLetter(ctx, m, err)
			if dlErr == nil {
				entry.WithError(err).WithField("attempts", attempt).Error("message dead-lettered")
				break
			}
			entry.WithError(dlErr).Error("dead letter write failed")
		}
		entry.WithError(err).WithField("attempt", attempt).Warn("message handler failed; retrying")
		if !sleepCtx(ctx, delay) {
			return
		}
		delay *= 2
		if delay > c.retry.Max {
			delay = c.retry.Max
		}
	}

	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		entry.WithError(err).Warn("commit failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewDeadLetter writes parked messages to w synchronously. Key and value are kept;
// the origin and the last error travel as headers.
func NewDeadLetter(w MessageWriter) DeadLetter {
	return func(ctx context.Context, m kafka.Message, cause error) error {
		headers := make([]kafka.Header, 0, len(m.Headers)+3)
		headers = append(headers, m.Headers...)
		headers = append(headers,
			kafka.Header{Key: "dlq-origin", Value: []byte(fmt.Sprintf("%s/%d", m.Topic, m.Partition))},
			kafka.Header{Key: "dlq-offset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
			kafka.Header{Key: "dlq-error", Value: []byte(cause.Error())},
		)
		err := w.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Headers: headers})
		return errors.Wrap(err, "write dead letter")
	}
}
