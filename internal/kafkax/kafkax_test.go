package kafkax

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	closed  bool
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducer(w, 8, nil)
	p.Start(context.Background())

	require.NoError(t, p.Publish([]byte("k1"), []byte("v1")))
	require.NoError(t, p.Publish([]byte("k2"), []byte("v2")))
	p.Close()
	p.WaitClosed()

	assert.True(t, w.closed)
	require.Len(t, w.written, 2)
	assert.Equal(t, "k1", string(w.written[0].Key))
	assert.Equal(t, "v2", string(w.written[1].Value))

	assert.ErrorIs(t, p.Publish([]byte("k3"), nil), ErrClosed)
	p.Close() // second close is a no-op
}

func TestProducerBufferFull(t *testing.T) {
	p := NewProducer(&fakeWriter{}, 1, nil)
	// not started: nothing drains the buffer
	require.NoError(t, p.Publish(nil, []byte("a")))
	assert.ErrorIs(t, p.Publish(nil, []byte("b")), ErrBufferFull)
}

func TestProducerLogsWriteErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := NewProducer(w, 4, log)
	p.Start(context.Background())

	require.NoError(t, p.Publish([]byte("k"), []byte("v")))
	p.Close()
	p.WaitClosed()

	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, logrus.ErrorLevel, hook.AllEntries()[0].Level)
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

// flaky fails the first n attempts on each listed offset, then succeeds.
type flaky struct {
	mu       sync.Mutex
	failures map[int64]int
	attempts map[int64]int
}

func newFlaky(failures map[int64]int) *flaky {
	return &flaky{failures: failures, attempts: map[int64]int{}}
}

func (f *flaky) handle(_ context.Context, m kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[m.Offset]++
	if f.attempts[m.Offset] <= f.failures[m.Offset] {
		return errors.New("sink unavailable")
	}
	return nil
}

func (f *flaky) tries(offset int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[offset]
}

var fastRetry = RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 4 * time.Millisecond}

func startConsumer(t *testing.T, c *Consumer, h Handler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestConsumerRetriesBeforeCommitting(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	log, _ := test.NewNullLogger()
	h := newFlaky(map[int64]int{2: 2})
	stop := startConsumer(t, NewConsumer(r, 1, log).WithRetry(fastRetry), h.handle)

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	assert.Equal(t, 3, h.tries(2))
	assert.True(t, r.closed)
}

func TestConsumerNeverCommitsPastFailingOffset(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Partition: 0, Offset: 1},
		{Partition: 0, Offset: 2},
		{Partition: 0, Offset: 3},
		{Partition: 1, Offset: 7},
	}}
	log, _ := test.NewNullLogger()
	h := newFlaky(map[int64]int{2: 1 << 30})
	stop := startConsumer(t, NewConsumer(r, 2, log).WithRetry(fastRetry), h.handle)

	require.Eventually(t, func() bool { return h.tries(2) >= 5 && len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	stop()

	// the other partition is not held back
	assert.ElementsMatch(t, []int64{1, 7}, r.commits())
	assert.Zero(t, h.tries(3))
}

func TestConsumerDeadLettersAfterAttempts(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Topic: "events", Offset: 1},
		{Topic: "events", Offset: 2, Key: []byte("k2"), Value: []byte("v2")},
		{Topic: "events", Offset: 3},
	}}
	log, _ := test.NewNullLogger()
	h := newFlaky(map[int64]int{2: 1 << 30})
	dlq := &fakeWriter{}
	c := NewConsumer(r, 1, log).WithRetry(fastRetry).WithDeadLetter(NewDeadLetter(dlq))
	stop := startConsumer(t, c, h.handle)

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	assert.Equal(t, fastRetry.Attempts, h.tries(2))
	require.Len(t, dlq.written, 1)
	parked := dlq.written[0]
	assert.Equal(t, "k2", string(parked.Key))
	assert.Equal(t, "v2", string(parked.Value))
	headers := map[string]string{}
	for _, hd := range parked.Headers {
		headers[hd.Key] = string(hd.Value)
	}
	assert.Equal(t, "events/0", headers["dlq-origin"])
	assert.Equal(t, "2", headers["dlq-offset"])
	assert.Equal(t, "sink unavailable", headers["dlq-error"])
}

func TestConsumerKeepsRetryingWhenDeadLetterFails(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	log, _ := test.NewNullLogger()
	h := newFlaky(map[int64]int{1: 1 << 30})
	c := NewConsumer(r, 1, log).WithRetry(fastRetry).WithDeadLetter(NewDeadLetter(&fakeWriter{err: errors.New("dlq down")}))
	stop := startConsumer(t, c, h.handle)

	require.Eventually(t, func() bool { return h.tries(1) > fastRetry.Attempts+2 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Empty(t, r.commits())
	assert.Zero(t, h.tries(2))
}
