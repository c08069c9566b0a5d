// internal/action/action.go
package action

import (
	"context"
	"strings"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// Action is a named, fallible unit of work run against the shared Context.
type Action interface {
	// Name is the stable identifier reported in events.
	Name() string
	Execute(ctx context.Context, automation schemas.Automation, actx *Context) error
}

// MoveCursor moves the pointer to absolute screen coordinates.
type MoveCursor struct {
	X, Y int
}

func (MoveCursor) Name() string { return "MoveCursor" }

func (a MoveCursor) Execute(ctx context.Context, automation schemas.Automation, _ *Context) error {
	return automation.MoveCursor(ctx, a.X, a.Y)
}

// Click clicks a mouse button at the current pointer position.
type Click struct {
	Button schemas.MouseButton
}

func (Click) Name() string { return "Click" }

func (a Click) Execute(ctx context.Context, automation schemas.Automation, _ *Context) error {
	return automation.Click(ctx, a.Button)
}

// TypeText types text after expanding $variables. Text that expands to
// exactly "{Key:<name>}" presses the named key instead.
type TypeText struct {
	Text string
}

func (TypeText) Name() string { return "Type" }

func (a TypeText) Execute(ctx context.Context, automation schemas.Automation, actx *Context) error {
	text := actx.Expand(a.Text)
	if key, ok := parseKeyDirective(text); ok {
		return automation.Key(ctx, key)
	}
	return automation.TypeText(ctx, text)
}

// Key presses a single named key.
type Key struct {
	Key string
}

func (Key) Name() string { return "Key" }

func (a Key) Execute(ctx context.Context, automation schemas.Automation, _ *Context) error {
	return automation.Key(ctx, a.Key)
}

func parseKeyDirective(text string) (string, bool) {
	if !strings.HasPrefix(text, "{Key:") || !strings.HasSuffix(text, "}") || len(text) < len("{Key:}") {
		return "", false
	}
	return text[len("{Key:") : len(text)-1], true
}
