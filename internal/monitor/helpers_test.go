package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/action"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// screen is a scriptable ScreenCapture keyed by region id.
type screen struct {
	mu     sync.Mutex
	hashes map[string]uint64
	calls  int
}

func newScreen() *screen { return &screen{hashes: make(map[string]uint64)} }

func (s *screen) set(id string, h uint64) {
	s.mu.Lock()
	s.hashes[id] = h
	s.mu.Unlock()
}

func (s *screen) HashRegion(r schemas.Region, _ int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.hashes[r.ID]
}

func (s *screen) CaptureRegion(context.Context, schemas.Region) (schemas.Frame, error) {
	return schemas.Frame{}, errors.New("not supported")
}

func (s *screen) Displays(context.Context) ([]schemas.DisplayInfo, error) { return nil, nil }

// keyboard records automation calls as strings.
type keyboard struct {
	calls   []string
	failOn  string
	failErr error
}

func (k *keyboard) record(call string) error {
	k.calls = append(k.calls, call)
	if k.failOn != "" && call == k.failOn {
		return k.failErr
	}
	return nil
}

func (k *keyboard) MoveCursor(_ context.Context, x, y int) error {
	return k.record(fmt.Sprintf("move(%d,%d)", x, y))
}

func (k *keyboard) Click(_ context.Context, b schemas.MouseButton) error {
	return k.record("click(" + string(b) + ")")
}

func (k *keyboard) TypeText(_ context.Context, text string) error {
	return k.record("type(" + text + ")")
}

func (k *keyboard) Key(_ context.Context, name string) error {
	return k.record("key(" + name + ")")
}

// textOCR returns canned text per region.
type textOCR struct {
	text map[string]string
	errs map[string]error
}

func (o *textOCR) ExtractText(_ context.Context, r schemas.Region) (string, error) {
	if err := o.errs[r.ID]; err != nil {
		return "", err
	}
	return o.text[r.ID], nil
}

func (o *textOCR) ExtractTextCached(ctx context.Context, r schemas.Region, _ uint64) (string, error) {
	return o.ExtractText(ctx, r)
}

// fakeLLM returns a fixed response.
type fakeLLM struct {
	resp schemas.LLMPromptResponse
}

func (f *fakeLLM) GeneratePrompt(context.Context, schemas.PromptRequest) (schemas.LLMPromptResponse, error) {
	return f.resp, nil
}

// harness wires a monitor with a controllable clock and collaborators.
type harness struct {
	m       *Monitor
	screen  *screen
	keys    *keyboard
	regions []schemas.Region
	log     *schemas.EventLog
}

func newHarness(t *testing.T, trigger Trigger, cond Condition, actions []action.Action, g Guardrails, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		screen:  newScreen(),
		keys:    &keyboard{},
		regions: []schemas.Region{{ID: "r1", Rect: schemas.Rect{Width: 10, Height: 10}}},
		log:     &schemas.EventLog{},
	}
	h.screen.set("r1", 42)
	opts = append([]Option{WithClock(func() time.Time { return t0 }), WithLogger(zaptest.NewLogger(t))}, opts...)
	m, err := New(trigger, cond, action.NewSequence(actions, action.WithDelay(0)), g, opts...)
	require.NoError(t, err)
	h.m = m
	return h
}

func (h *harness) start() {
	h.m.Start(h.log)
}

func (h *harness) tick(at time.Duration) []schemas.Event {
	before := h.log.Len()
	h.m.Tick(context.Background(), t0.Add(at), h.regions, h.screen, h.keys, h.log)
	return h.log.Events()[before:]
}

func (h *harness) trips() []string {
	var out []string
	for _, e := range h.log.Events() {
		if w, ok := e.(schemas.WatchdogTripped); ok {
			out = append(out, w.Reason)
		}
	}
	return out
}

// withoutTicks drops MonitorTick events, which carry timing noise.
func withoutTicks(events []schemas.Event) []schemas.Event {
	var out []schemas.Event
	for _, e := range events {
		if _, ok := e.(schemas.MonitorTick); ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// alwaysTrigger fires on every call.
type alwaysTrigger struct{}

func (alwaysTrigger) ShouldFire(time.Time) bool       { return true }
func (alwaysTrigger) TimeUntilNextMs(time.Time) uint64 { return 0 }

// constCondition always returns the same result.
type constCondition bool

func (c constCondition) Evaluate(time.Time, []schemas.Region, schemas.ScreenCapture) bool {
	return bool(c)
}

func typeAction(text string) action.Action { return action.TypeText{Text: text} }
