// internal/ocr/tesseract.go

// Package ocr extracts text from screen regions.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// ErrUnavailable is returned when the OCR engine cannot be found.
var ErrUnavailable = errors.New("ocr engine unavailable")

// runner executes the engine with a PNG on stdin and returns stdout.
type runner func(ctx context.Context, bin string, args []string, stdin []byte) ([]byte, error)

func execRunner(ctx context.Context, bin string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Tesseract runs the tesseract CLI over captured region frames.
type Tesseract struct {
	bin      string
	language string
	capture  schemas.ScreenCapture
	run      runner
	logger   *zap.Logger
}

// NewTesseract resolves the tesseract binary and returns an extractor that
// reads pixels through capture.
func NewTesseract(cfg config.OCRConfig, capture schemas.ScreenCapture, logger *zap.Logger) (*Tesseract, error) {
	if capture == nil {
		return nil, errors.New("screen capture cannot be nil")
	}
	bin, err := exec.LookPath(cfg.TesseractPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return newTesseract(bin, cfg.Language, capture, execRunner, logger), nil
}

func newTesseract(bin, language string, capture schemas.ScreenCapture, run runner, logger *zap.Logger) *Tesseract {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{
		bin:      bin,
		language: language,
		capture:  capture,
		run:      run,
		logger:   logger.Named("ocr"),
	}
}

// ExtractText captures the region and returns the recognized text.
func (t *Tesseract) ExtractText(ctx context.Context, region schemas.Region) (string, error) {
	frame, err := t.capture.CaptureRegion(ctx, region)
	if err != nil {
		return "", fmt.Errorf("failed to capture region '%s': %w", region.ID, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.RGBA()); err != nil {
		return "", fmt.Errorf("failed to encode region '%s': %w", region.ID, err)
	}

	out, err := t.run(ctx, t.bin, []string{"stdin", "stdout", "-l", t.language}, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("tesseract failed for region '%s': %w", region.ID, err)
	}
	text := strings.TrimSpace(string(out))
	t.logger.Debug("Extracted text.", zap.String("region_id", region.ID), zap.Int("length", len(text)))
	return text, nil
}

// ExtractTextCached is uncached on the raw engine; wrap it in Cached.
func (t *Tesseract) ExtractTextCached(ctx context.Context, region schemas.Region, _ uint64) (string, error) {
	return t.ExtractText(ctx, region)
}
