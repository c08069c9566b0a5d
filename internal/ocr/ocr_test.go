package ocr

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// frameCapture returns solid frames sized to the region.
type frameCapture struct {
	err error
}

func (f *frameCapture) HashRegion(schemas.Region, int) uint64 { return 0 }

func (f *frameCapture) CaptureRegion(_ context.Context, r schemas.Region) (schemas.Frame, error) {
	if f.err != nil {
		return schemas.Frame{}, f.err
	}
	w, h := r.Rect.Width, r.Rect.Height
	return schemas.Frame{Width: w, Height: h, Stride: 4 * w, Bytes: make([]byte, 4*w*h)}, nil
}

func (f *frameCapture) Displays(context.Context) ([]schemas.DisplayInfo, error) { return nil, nil }

// mockExtractor is a testify mock of the wrapped extractor.
type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractText(_ context.Context, r schemas.Region) (string, error) {
	args := m.Called(r.ID)
	return args.String(0), args.Error(1)
}

func (m *mockExtractor) ExtractTextCached(ctx context.Context, r schemas.Region, _ uint64) (string, error) {
	return m.ExtractText(ctx, r)
}

var region = schemas.Region{ID: "log", Rect: schemas.Rect{Width: 4, Height: 2}}

func TestTesseractExtractText(t *testing.T) {
	var gotArgs []string
	var gotInput []byte
	run := func(_ context.Context, bin string, args []string, stdin []byte) ([]byte, error) {
		assert.Equal(t, "/usr/bin/tesseract", bin)
		gotArgs, gotInput = args, stdin
		return []byte("  All tests passed\n\n"), nil
	}
	tess := newTesseract("/usr/bin/tesseract", "", &frameCapture{}, run, zaptest.NewLogger(t))

	text, err := tess.ExtractText(context.Background(), region)
	require.NoError(t, err)
	assert.Equal(t, "All tests passed", text)
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng"}, gotArgs)

	img, err := png.Decode(bytes.NewReader(gotInput))
	require.NoError(t, err, "the engine receives a PNG")
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestTesseractErrors(t *testing.T) {
	run := func(context.Context, string, []string, []byte) ([]byte, error) {
		return nil, errors.New("exit status 1: Failed loading language 'xx'")
	}
	tess := newTesseract("tesseract", "xx", &frameCapture{}, run, nil)
	_, err := tess.ExtractText(context.Background(), region)
	assert.ErrorContains(t, err, "tesseract failed for region 'log'")

	tess = newTesseract("tesseract", "eng", &frameCapture{err: errors.New("display gone")}, run, nil)
	_, err = tess.ExtractText(context.Background(), region)
	assert.ErrorContains(t, err, "failed to capture region 'log': display gone")
}

func TestNewTesseract(t *testing.T) {
	_, err := NewTesseract(config.OCRConfig{TesseractPath: "definitely-not-a-real-ocr-binary"}, &frameCapture{}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewTesseract(config.OCRConfig{TesseractPath: "tesseract"}, nil, nil)
	assert.EqualError(t, err, "screen capture cannot be nil")
}

func TestCachedReusesTextWhileHashIsStable(t *testing.T) {
	inner := &mockExtractor{}
	inner.On("ExtractText", "log").Return("first", nil).Once()
	inner.On("ExtractText", "log").Return("second", nil).Once()
	c := NewCached(inner, 0, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		text, err := c.ExtractTextCached(ctx, region, 7)
		require.NoError(t, err)
		assert.Equal(t, "first", text)
	}
	text, err := c.ExtractTextCached(ctx, region, 8)
	require.NoError(t, err)
	assert.Equal(t, "second", text, "a new hash invalidates the entry")
	inner.AssertExpectations(t)
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	inner := &mockExtractor{}
	inner.On("ExtractText", "log").Return("", errors.New("busy")).Once()
	inner.On("ExtractText", "log").Return("ok", nil).Once()
	c := NewCached(inner, 0, nil)

	_, err := c.ExtractTextCached(context.Background(), region, 1)
	assert.Error(t, err)
	text, err := c.ExtractTextCached(context.Background(), region, 1)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	inner.AssertExpectations(t)
}

func TestCachedEvictsOldestRegion(t *testing.T) {
	inner := &mockExtractor{}
	inner.On("ExtractText", mock.Anything).Return("x", nil)
	c := NewCached(inner, 2, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a", "c"} {
		_, err := c.ExtractTextCached(ctx, schemas.Region{ID: id}, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	inner.AssertNumberOfCalls(t, "ExtractText", 3)

	_, _ = c.ExtractTextCached(ctx, schemas.Region{ID: "a"}, 1)
	assert.Len(t, inner.Calls, 4, "a was evicted when c arrived")
}
