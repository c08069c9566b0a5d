// internal/journal/file.go
package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/loopguard/internal/config"
)

// FileSink appends records as JSON lines to a size-rotated file.
type FileSink struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// NewFileSink opens the journal at cfg.Path. The parent directory is
// created when missing.
func NewFileSink(cfg config.JournalConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal.path is required for the file sink")
	}
	path, err := homedir.Expand(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand journal path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return newFileSink(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}), nil
}

func newFileSink(out io.WriteCloser) *FileSink {
	return &FileSink{out: out}
}

func (s *FileSink) Write(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf []byte
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode journal record %d of run %s: %w", rec.Seq, rec.RunID, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(buf); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
