// api/schemas/region.go
package schemas

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// Rect is a rectangle in screen pixels.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Image converts the rectangle to image coordinates.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Region is a named rectangular area of the screen tracked for change
// detection or capture. Regions are immutable once built.
type Region struct {
	ID   string `json:"id" yaml:"id"`
	Rect Rect   `json:"rect" yaml:"rect"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Label returns the human-readable name, falling back to the id.
func (r Region) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// FindRegion returns the region with the given id.
func FindRegion(regions []Region, id string) (Region, bool) {
	for _, r := range regions {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// DisplayInfo describes one attached display.
type DisplayInfo struct {
	ID          uint32  `json:"id"`
	Name        string  `json:"name,omitempty"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ScaleFactor float64 `json:"scale_factor"`
	IsPrimary   bool    `json:"is_primary"`
}

// Frame is a captured block of RGBA pixels.
type Frame struct {
	Width     int
	Height    int
	Stride    int
	Bytes     []byte
	Timestamp time.Time
}

// RGBA exposes the frame as an image without copying the pixel buffer.
func (f Frame) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Bytes,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// MouseButton names a pointer button.
type MouseButton string

const (
	MouseLeft   MouseButton = "Left"
	MouseRight  MouseButton = "Right"
	MouseMiddle MouseButton = "Middle"
)

// ParseMouseButton accepts button names case-insensitively. An empty name
// means the left button.
func ParseMouseButton(s string) (MouseButton, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return MouseLeft, nil
	case "right":
		return MouseRight, nil
	case "middle":
		return MouseMiddle, nil
	default:
		return "", fmt.Errorf("unknown mouse button %q", s)
	}
}
