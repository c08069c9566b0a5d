// internal/eventbus/bus.go

// Package eventbus fans monitor events out to in-process observers such as
// the journal, the CLI status printer and the alarm hook.
package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// ErrClosed is returned by Publish after Shutdown.
var ErrClosed = errors.New("event bus is shut down")

// Message is the envelope of one event on the bus.
type Message struct {
	ID        string
	RunID     string
	ProfileID string
	// Seq is the position of the event within its run, starting at 1.
	Seq   uint64
	At    time.Time
	Event schemas.Event
}

type subscriber struct {
	ch      chan Message
	types   map[schemas.EventType]struct{}
	dropped atomic.Uint64

	// gone is closed when the subscriber leaves, releasing publishers that
	// wait on a full buffer.
	gone     chan struct{}
	goneOnce sync.Once
}

func (s *subscriber) leave() {
	s.goneOnce.Do(func() { close(s.gone) })
}

func (s *subscriber) wants(t schemas.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// lifecycle lists the event types a subscriber never misses. Publishing one
// to a full buffer waits for room until the subscriber leaves or the bus
// shuts down.
var lifecycle = map[schemas.EventType]struct{}{
	schemas.EventMonitorStateChanged: {},
	schemas.EventWatchdogTripped:     {},
}

// Bus is a publish/subscribe hub. A subscriber whose buffer is full misses
// ordinary messages; lifecycle messages wait for room instead.
type Bus struct {
	logger     *zap.Logger
	bufferSize int
	closing    chan struct{}
	closeOnce  sync.Once

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	isShutdown  bool
}

// New creates a bus whose subscriber channels hold bufferSize messages.
func New(logger *zap.Logger, bufferSize int) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		logger:      logger.Named("event_bus"),
		bufferSize:  bufferSize,
		subscribers: make(map[string]*subscriber),
		closing:     make(chan struct{}),
	}
}

// Publish delivers msg to every interested subscriber. ID and At are filled
// in when empty.
func (b *Bus) Publish(msg Message) error {
	if msg.Event == nil {
		return errors.New("cannot publish a message without an event")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isShutdown {
		return ErrClosed
	}
	kind := msg.Event.Kind()
	_, mustDeliver := lifecycle[kind]
	for id, sub := range b.subscribers {
		if !sub.wants(kind) {
			continue
		}
		if mustDeliver {
			select {
			case sub.ch <- msg:
			case <-sub.gone:
			case <-b.closing:
				b.logger.Error("Bus shut down before a lifecycle event was delivered.",
					zap.String("subscriber_id", id),
					zap.String("event_type", string(kind)))
			}
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			n := sub.dropped.Add(1)
			b.logger.Warn("Subscriber is falling behind, event dropped.",
				zap.String("subscriber_id", id),
				zap.String("event_type", string(kind)),
				zap.Uint64("dropped", n))
		}
	}
	return nil
}

// Subscribe registers an observer for the given event types, or for every
// type when none are given. The returned function unsubscribes and closes
// the channel.
func (b *Bus) Subscribe(types ...schemas.EventType) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, b.bufferSize), gone: make(chan struct{})}
	if len(types) > 0 {
		sub.types = make(map[schemas.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	id := uuid.New().String()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subscribers[id] = sub

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			sub.leave()
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[id]; !ok {
				// Already closed by Shutdown.
				return
			}
			delete(b.subscribers, id)
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe
}

// Sink returns an EventSink that stamps events with run metadata and a
// per-run sequence number before publishing them.
func (b *Bus) Sink(runID, profileID string) schemas.EventSink {
	return &runSink{bus: b, runID: runID, profileID: profileID}
}

type runSink struct {
	bus       *Bus
	runID     string
	profileID string

	mu  sync.Mutex
	seq uint64
}

func (s *runSink) Emit(e schemas.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if err := s.bus.Publish(Message{RunID: s.runID, ProfileID: s.profileID, Seq: s.seq, Event: e}); err != nil {
		s.bus.logger.Debug("Event not published.", zap.String("event_type", string(e.Kind())), zap.Error(err))
	}
}

// Shutdown closes every subscriber channel. Later publishes fail with
// ErrClosed. It is safe to call more than once.
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() { close(b.closing) })
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return
	}
	b.isShutdown = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.logger.Debug("Event bus shut down.")
}
