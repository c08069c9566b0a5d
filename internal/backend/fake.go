// internal/backend/fake.go
package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// Fake is an in-memory display and input device. Region pixels are derived
// from a per-region content seed, so tests and the soak harness change what
// is "on screen" by changing the seed. Every input call is recorded.
type Fake struct {
	logger  *zap.Logger
	display schemas.DisplayInfo

	mu       sync.Mutex
	content  map[string]uint64
	lastHash map[string]uint64
	failures map[string]error
	calls    []string
	cursorX  int
	cursorY  int
}

var _ schemas.PressReleaseAutomation = (*Fake)(nil)

// NewFake creates a fake backend with a single primary display.
func NewFake(cfg config.FakeConfig, logger *zap.Logger) *Fake {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, h := cfg.DisplayWidth, cfg.DisplayHeight
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return &Fake{
		logger: logger.Named("backend.fake"),
		display: schemas.DisplayInfo{
			ID: 1, Name: "fake", Width: w, Height: h, ScaleFactor: 1, IsPrimary: true,
		},
		content:  make(map[string]uint64),
		lastHash: make(map[string]uint64),
		failures: make(map[string]error),
	}
}

// SetContent sets the content seed of a region.
func (f *Fake) SetContent(regionID string, seed uint64) {
	f.mu.Lock()
	f.content[regionID] = seed
	f.mu.Unlock()
}

// FailOn makes every following call of op return err. op is one of
// "capture", "move", "click", "type", "key", "mouse_down", "mouse_up",
// "key_down" or "key_up". A nil err clears the failure.
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns the recorded input calls, e.g. "move(10,20)" or "key(Enter)".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// ResetCalls forgets the recorded calls.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Cursor returns the pointer position.
func (f *Fake) Cursor() (x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursorX, f.cursorY
}

func (f *Fake) render(region schemas.Region) (schemas.Frame, error) {
	r := region.Rect
	if r.Empty() {
		return schemas.Frame{}, fmt.Errorf("region '%s' has an empty rectangle", region.ID)
	}
	f.mu.Lock()
	seed := f.content[region.ID]
	err := f.failures["capture"]
	f.mu.Unlock()
	if err != nil {
		return schemas.Frame{}, err
	}

	stride := 4 * r.Width
	pix := make([]byte, stride*r.Height)
	for i := range pix {
		pix[i] = byte(seed>>(8*(i%8))) ^ byte(i/4)
	}
	return schemas.Frame{Width: r.Width, Height: r.Height, Stride: stride, Bytes: pix, Timestamp: time.Now()}, nil
}

func (f *Fake) HashRegion(region schemas.Region, downscale int) uint64 {
	frame, err := f.render(region)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Debug("Capture failed, reusing last hash.", zap.String("region_id", region.ID), zap.Error(err))
		return f.lastHash[region.ID]
	}
	h := HashFrame(frame, downscale)
	f.lastHash[region.ID] = h
	return h
}

func (f *Fake) CaptureRegion(ctx context.Context, region schemas.Region) (schemas.Frame, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Frame{}, err
	}
	return f.render(region)
}

func (f *Fake) Displays(ctx context.Context) ([]schemas.DisplayInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []schemas.DisplayInfo{f.display}, nil
}

// record logs the call and returns the configured failure for op, if any.
func (f *Fake) record(ctx context.Context, op, call string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[op]; err != nil {
		return err
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *Fake) MoveCursor(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 || x >= f.display.Width || y >= f.display.Height {
		return fmt.Errorf("point (%d,%d) is outside the %dx%d display", x, y, f.display.Width, f.display.Height)
	}
	if err := f.record(ctx, "move", fmt.Sprintf("move(%d,%d)", x, y)); err != nil {
		return err
	}
	f.mu.Lock()
	f.cursorX, f.cursorY = x, y
	f.mu.Unlock()
	return nil
}

func (f *Fake) Click(ctx context.Context, button schemas.MouseButton) error {
	return f.record(ctx, "click", fmt.Sprintf("click(%s)", button))
}

func (f *Fake) TypeText(ctx context.Context, text string) error {
	return f.record(ctx, "type", fmt.Sprintf("type(%s)", text))
}

func (f *Fake) Key(ctx context.Context, name string) error {
	def, err := LookupKey(name)
	if err != nil {
		return err
	}
	return f.record(ctx, "key", fmt.Sprintf("key(%s)", def.Key))
}

func (f *Fake) MouseDown(ctx context.Context, button schemas.MouseButton) error {
	return f.record(ctx, "mouse_down", fmt.Sprintf("mouse_down(%s)", button))
}

func (f *Fake) MouseUp(ctx context.Context, button schemas.MouseButton) error {
	return f.record(ctx, "mouse_up", fmt.Sprintf("mouse_up(%s)", button))
}

func (f *Fake) KeyDown(ctx context.Context, name string) error {
	def, err := LookupKey(name)
	if err != nil {
		return err
	}
	return f.record(ctx, "key_down", fmt.Sprintf("key_down(%s)", def.Key))
}

func (f *Fake) KeyUp(ctx context.Context, name string) error {
	def, err := LookupKey(name)
	if err != nil {
		return err
	}
	return f.record(ctx, "key_up", fmt.Sprintf("key_up(%s)", def.Key))
}

// Close is a no-op.
func (f *Fake) Close() error { return nil }
