// internal/backend/browser.go
package backend

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
	"github.com/xkilldash9x/loopguard/internal/humanoid"
)

// Browser drives a Chromium page over CDP and treats its viewport as the
// screen. Region rectangles are in CSS pixels of the viewport.
type Browser struct {
	cfg    config.BrowserConfig
	ctx    context.Context
	cancel context.CancelFunc
	human  *humanoid.Humanoid
	logger *zap.Logger

	mu       sync.Mutex
	lastHash map[string]uint64
}

var _ schemas.PressReleaseAutomation = (*Browser)(nil)

// NewBrowser launches Chromium, sizes the viewport and opens cfg.URL. The
// browser lives until Close is called or ctx is done.
func NewBrowser(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("backend.browser")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(cfg.Width, cfg.Height),
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	url := cfg.URL
	if url == "" {
		url = "about:blank"
	}
	err := chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(int64(cfg.Width), int64(cfg.Height), 1, false),
		chromedp.Navigate(url),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser backend: %w", err)
	}
	logger.Info("Browser backend ready.", zap.String("url", url), zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))

	return &Browser{
		cfg:      cfg,
		ctx:      tabCtx,
		cancel:   cancel,
		human:    humanoid.New(cfg.Humanoid, humanoid.NewCDPExecutor(), logger, nil),
		logger:   logger,
		lastHash: make(map[string]uint64),
	}, nil
}

// run executes actions on the page, aborting when either the browser or
// the caller's ctx is done.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (b *Browser) CaptureRegion(ctx context.Context, region schemas.Region) (schemas.Frame, error) {
	r := region.Rect
	if r.Empty() {
		return schemas.Frame{}, fmt.Errorf("region '%s' has an empty rectangle", region.ID)
	}
	var buf []byte
	err := b.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height), Scale: 1}).
			Do(cctx)
		return err
	}))
	if err != nil {
		return schemas.Frame{}, fmt.Errorf("screenshot of region '%s' failed: %w", region.ID, err)
	}
	return decodeFrame(buf)
}

// decodeFrame converts a PNG screenshot into an RGBA frame.
func decodeFrame(data []byte) (schemas.Frame, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return schemas.Frame{}, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return schemas.Frame{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Stride:    rgba.Stride,
		Bytes:     rgba.Pix,
		Timestamp: time.Now(),
	}, nil
}

func (b *Browser) HashRegion(region schemas.Region, downscale int) uint64 {
	frame, err := b.CaptureRegion(b.ctx, region)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.logger.Debug("Capture failed, reusing last hash.", zap.String("region_id", region.ID), zap.Error(err))
		return b.lastHash[region.ID]
	}
	h := HashFrame(frame, downscale)
	b.lastHash[region.ID] = h
	return h
}

func (b *Browser) Displays(context.Context) ([]schemas.DisplayInfo, error) {
	return []schemas.DisplayInfo{{
		ID: 1, Name: "browser", Width: b.cfg.Width, Height: b.cfg.Height, ScaleFactor: 1, IsPrimary: true,
	}}, nil
}

func (b *Browser) MoveCursor(ctx context.Context, x, y int) error {
	target := humanoid.Vector2D{X: float64(x), Y: float64(y)}
	return b.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		return b.human.MoveTo(cctx, target)
	}))
}

func cdpButton(button schemas.MouseButton) (input.MouseButton, error) {
	switch button {
	case schemas.MouseLeft:
		return input.Left, nil
	case schemas.MouseRight:
		return input.Right, nil
	case schemas.MouseMiddle:
		return input.Middle, nil
	default:
		return "", fmt.Errorf("unsupported mouse button '%s'", button)
	}
}

func (b *Browser) mouseEvent(typ input.MouseType, button schemas.MouseButton) (*input.DispatchMouseEventParams, error) {
	btn, err := cdpButton(button)
	if err != nil {
		return nil, err
	}
	pos := b.human.Position()
	return input.DispatchMouseEvent(typ, pos.X, pos.Y).WithButton(btn).WithClickCount(1), nil
}

func (b *Browser) Click(ctx context.Context, button schemas.MouseButton) error {
	down, err := b.mouseEvent(input.MousePressed, button)
	if err != nil {
		return err
	}
	up, _ := b.mouseEvent(input.MouseReleased, button)
	return b.run(ctx, down, up)
}

func (b *Browser) MouseDown(ctx context.Context, button schemas.MouseButton) error {
	ev, err := b.mouseEvent(input.MousePressed, button)
	if err != nil {
		return err
	}
	return b.run(ctx, ev)
}

func (b *Browser) MouseUp(ctx context.Context, button schemas.MouseButton) error {
	ev, err := b.mouseEvent(input.MouseReleased, button)
	if err != nil {
		return err
	}
	return b.run(ctx, ev)
}

func (b *Browser) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return b.run(ctx, input.InsertText(text))
}

// keyEvents builds the CDP events for pressing (down) or releasing a key.
func keyEvents(def KeyDef, down bool) *input.DispatchKeyEventParams {
	typ := input.KeyUp
	if down {
		typ = input.KeyDown
		if def.Text == "" {
			typ = input.KeyRawDown
		}
	}
	ev := input.DispatchKeyEvent(typ).
		WithKey(def.Key).
		WithCode(def.Code).
		WithWindowsVirtualKeyCode(def.VK).
		WithNativeVirtualKeyCode(def.VK)
	if down && def.Text != "" {
		ev = ev.WithText(def.Text).WithUnmodifiedText(def.Text)
	}
	return ev
}

func (b *Browser) Key(ctx context.Context, name string) error {
	def, err := LookupKey(name)
	if err != nil {
		return err
	}
	return b.run(ctx, keyEvents(def, true), keyEvents(def, false))
}

func (b *Browser) KeyDown(ctx context.Context, name string) error {
	def, err := LookupKey(name)
	if err != nil {
		return err
	}
	return b.run(ctx, keyEvents(def, true))
}

func (b *Browser) KeyUp(ctx context.Context, name string) error {
	def, err := LookupKey(name)
	if err != nil {
		return err
	}
	return b.run(ctx, keyEvents(def, false))
}

// Close shuts the page and the browser process down.
func (b *Browser) Close() error {
	b.cancel()
	return nil
}
