// internal/backend/keys.go
package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKey is returned for key names no backend can press.
var ErrUnknownKey = errors.New("unknown key")

// KeyDef describes a named key in DOM terms.
type KeyDef struct {
	Key  string
	Code string
	// VK is the Windows virtual key code.
	VK   int64
	Text string
}

var keyTable = map[string]KeyDef{
	"enter":      {Key: "Enter", Code: "Enter", VK: 13, Text: "\r"},
	"tab":        {Key: "Tab", Code: "Tab", VK: 9},
	"escape":     {Key: "Escape", Code: "Escape", VK: 27},
	"backspace":  {Key: "Backspace", Code: "Backspace", VK: 8},
	"space":      {Key: " ", Code: "Space", VK: 32, Text: " "},
	"delete":     {Key: "Delete", Code: "Delete", VK: 46},
	"home":       {Key: "Home", Code: "Home", VK: 36},
	"end":        {Key: "End", Code: "End", VK: 35},
	"pageup":     {Key: "PageUp", Code: "PageUp", VK: 33},
	"pagedown":   {Key: "PageDown", Code: "PageDown", VK: 34},
	"arrowup":    {Key: "ArrowUp", Code: "ArrowUp", VK: 38},
	"arrowdown":  {Key: "ArrowDown", Code: "ArrowDown", VK: 40},
	"arrowleft":  {Key: "ArrowLeft", Code: "ArrowLeft", VK: 37},
	"arrowright": {Key: "ArrowRight", Code: "ArrowRight", VK: 39},
	"shift":      {Key: "Shift", Code: "ShiftLeft", VK: 16},
	"control":    {Key: "Control", Code: "ControlLeft", VK: 17},
	"alt":        {Key: "Alt", Code: "AltLeft", VK: 18},
	"meta":       {Key: "Meta", Code: "MetaLeft", VK: 91},
}

var keyAliases = map[string]string{
	"return": "enter",
	"esc":    "escape",
	"up":     "arrowup",
	"down":   "arrowdown",
	"left":   "arrowleft",
	"right":  "arrowright",
	"ctrl":   "control",
	"cmd":    "meta",
	"super":  "meta",
}

func init() {
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("F%d", i)
		keyTable[strings.ToLower(name)] = KeyDef{Key: name, Code: name, VK: int64(111 + i)}
	}
}

// LookupKey resolves a key name case-insensitively.
func LookupKey(name string) (KeyDef, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[n]; ok {
		n = alias
	}
	def, ok := keyTable[n]
	if !ok {
		return KeyDef{}, fmt.Errorf("%w: '%s'", ErrUnknownKey, name)
	}
	return def, nil
}
