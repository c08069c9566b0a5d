// api/schemas/interfaces.go
package schemas

import "context"

// -- Collaborator Interfaces --

// ScreenCapture reads pixels from the display.
type ScreenCapture interface {
	// HashRegion returns a cheap, deterministic 64-bit hash of the region's
	// pixels, sampled every downscale pixels. It never fails; a backend that
	// cannot read the screen returns the last hash it produced for the region.
	HashRegion(region Region, downscale int) uint64
	// CaptureRegion returns the region's pixels.
	CaptureRegion(ctx context.Context, region Region) (Frame, error)
	// Displays lists the attached displays.
	Displays(ctx context.Context) ([]DisplayInfo, error)
}

// Automation synthesizes mouse and keyboard input.
type Automation interface {
	MoveCursor(ctx context.Context, x, y int) error
	Click(ctx context.Context, button MouseButton) error
	TypeText(ctx context.Context, text string) error
	// Key presses and releases a named key such as "Enter" or "Tab".
	Key(ctx context.Context, name string) error
}

// PressReleaseAutomation is implemented by backends that can hold buttons and
// keys down independently, for drags and modifier chords.
type PressReleaseAutomation interface {
	MouseDown(ctx context.Context, button MouseButton) error
	MouseUp(ctx context.Context, button MouseButton) error
	KeyDown(ctx context.Context, name string) error
	KeyUp(ctx context.Context, name string) error
}

// MouseDown presses button, falling back to a click on backends without
// independent press and release.
func MouseDown(ctx context.Context, a Automation, button MouseButton) error {
	if pr, ok := a.(PressReleaseAutomation); ok {
		return pr.MouseDown(ctx, button)
	}
	return a.Click(ctx, button)
}

// MouseUp releases button. It is a no-op on backends without press and release.
func MouseUp(ctx context.Context, a Automation, button MouseButton) error {
	if pr, ok := a.(PressReleaseAutomation); ok {
		return pr.MouseUp(ctx, button)
	}
	return nil
}

// KeyDown presses a key, falling back to a full key press.
func KeyDown(ctx context.Context, a Automation, name string) error {
	if pr, ok := a.(PressReleaseAutomation); ok {
		return pr.KeyDown(ctx, name)
	}
	return a.Key(ctx, name)
}

// KeyUp releases a key. It is a no-op on backends without press and release.
func KeyUp(ctx context.Context, a Automation, name string) error {
	if pr, ok := a.(PressReleaseAutomation); ok {
		return pr.KeyUp(ctx, name)
	}
	return nil
}

// TextExtractor performs OCR on screen regions.
type TextExtractor interface {
	ExtractText(ctx context.Context, region Region) (string, error)
	// ExtractTextCached may reuse a previous result for the same region hash.
	ExtractTextCached(ctx context.Context, region Region, hash uint64) (string, error)
}

// LLMClient proposes continuation prompts from screen content.
type LLMClient interface {
	GeneratePrompt(ctx context.Context, req PromptRequest) (LLMPromptResponse, error)
}

// Alarm alerts the operator.
type Alarm interface {
	// InterventionNeeded signals that automation refused to continue unattended.
	InterventionNeeded(reason string)
	// ProfileEnded signals that a run has stopped on its own.
	ProfileEnded(reason string)
}
