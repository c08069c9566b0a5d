// internal/journal/consumer.go
package journal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/internal/eventbus"
)

// Consumer drains a bus subscription into one or more sinks. Records are
// batched and flushed when the batch is full, on every flush interval and
// when the subscription closes.
type Consumer struct {
	sinks         []Sink
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithBatchSize sets the number of records buffered before a flush.
func WithBatchSize(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithFlushInterval sets the longest time a record waits in the buffer.
func WithFlushInterval(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// NewConsumer creates a consumer writing to sinks.
func NewConsumer(logger *zap.Logger, sinks []Sink, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		sinks:         sinks,
		batchSize:     64,
		flushInterval: time.Second,
		logger:        logger.Named("journal"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes messages until ch is closed or ctx is done, then flushes what
// is buffered and closes the sinks. Sink write failures are logged and the
// batch is dropped; Run only returns close errors.
func (c *Consumer) Run(ctx context.Context, ch <-chan eventbus.Message) error {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		for _, sink := range c.sinks {
			if err := sink.Write(ctx, batch); err != nil {
				c.logger.Error("Failed to write journal batch.", zap.Int("records", len(batch)), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

loop:
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				break loop
			}
			rec, err := NewRecord(msg)
			if err != nil {
				c.logger.Warn("Skipping unencodable event.", zap.Error(err))
				continue
			}
			batch = append(batch, rec)
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			break loop
		}
	}

	// The run context may already be cancelled; the final flush gets its own.
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	flush(finalCtx)

	var errs []error
	for _, sink := range c.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
