// internal/humanoid/trajectory.go
package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/chromedp/cdproto/input"
	"go.uber.org/zap"
)

// targetWidth is the assumed target width W in pixels for Fitts's law.
const targetWidth = 30.0

// computeEaseInOutCubic provides a smooth acceleration and deceleration profile for movement.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// calculateFittsLaw determines a realistic movement duration based on Fitts's Law,
// which models the time required to move to a target area.
func (h *Humanoid) calculateFittsLaw(distance float64) time.Duration {
	// Index of Difficulty (ID)
	id := math.Log2(1.0 + distance/targetWidth)

	// Movement Time (MT) in milliseconds
	mt := h.cfg.FittsA + h.cfg.FittsB*id

	if j := h.cfg.Jitter; j > 0 {
		h.mu.Lock()
		r := h.rng.Float64()
		h.mu.Unlock()
		mt += mt * (r*2*j - j)
	}
	if mt < 0 {
		mt = 0
	}
	return time.Duration(mt * float64(time.Millisecond))
}

// generateIdealPath creates a cubic Bezier path from start to end whose
// control points bow to one side by the configured curvature.
func (h *Humanoid) generateIdealPath(start, end Vector2D, numSteps int) []Vector2D {
	mainVec := end.Sub(start)
	dist := mainVec.Mag()

	if dist < 1.0 || numSteps <= 1 {
		return []Vector2D{end}
	}

	h.mu.Lock()
	side := 1.0
	if h.rng.Intn(2) == 0 {
		side = -1.0
	}
	h.mu.Unlock()

	offset := mainVec.Normalize().Perp().Mul(side * h.cfg.Curvature * dist)
	p0, p3 := start, end
	p1 := start.Lerp(end, 1.0/3.0).Add(offset)
	p2 := start.Lerp(end, 2.0/3.0).Add(offset)

	path := make([]Vector2D, numSteps)
	for i := 0; i < numSteps; i++ {
		t := float64(i) / float64(numSteps-1)
		// Cubic Bezier curve formula.
		omt := 1.0 - t
		omt2 := omt * omt
		omt3 := omt2 * omt
		t2 := t * t
		t3 := t2 * t

		path[i] = p0.Mul(omt3).Add(p1.Mul(3 * omt2 * t)).Add(p2.Mul(3 * omt * t2)).Add(p3.Mul(t3))
	}
	// Land exactly on the target despite float error.
	path[numSteps-1] = end
	return path
}

// MoveTo moves the pointer from its current position to target, dispatching
// one mouseMoved event per step. With humanoid motion disabled it jumps.
func (h *Humanoid) MoveTo(ctx context.Context, target Vector2D) error {
	start := h.Position()
	if !h.cfg.Enabled {
		return h.dispatchMove(ctx, target)
	}

	duration := h.calculateFittsLaw(start.Dist(target))
	path := h.generateIdealPath(start, target, h.cfg.Steps)
	stepDelay := duration / time.Duration(len(path))

	for i := range path {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Ease the sampling so the pointer accelerates then decelerates.
		t := 1.0
		if len(path) > 1 {
			t = float64(i) / float64(len(path)-1)
		}
		idx := int(math.Round(computeEaseInOutCubic(t) * float64(len(path)-1)))
		if err := h.dispatchMove(ctx, path[idx]); err != nil {
			return err
		}
		if stepDelay > 0 && i < len(path)-1 {
			if err := h.executor.Sleep(ctx, stepDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Humanoid) dispatchMove(ctx context.Context, p Vector2D) error {
	params := input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y)
	if err := h.executor.DispatchMouseEvent(ctx, params); err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("Humanoid: Failed to dispatch mouse move event", zap.Error(err))
		}
		return err
	}
	h.SetPosition(p)
	return nil
}
