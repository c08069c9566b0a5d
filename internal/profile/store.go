// internal/profile/store.go
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the encoding from a file extension. Anything that is not
// .json is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes a document. A missing version is treated as the current one.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile document: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = CurrentVersion
	}
	if doc.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported profile document version %d", doc.Version)
	}
	return &doc, nil
}

// Marshal encodes a document.
func Marshal(doc *Document, format Format) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = CurrentVersion
	}
	if format == FormatJSON {
		return json.MarshalIndent(doc, "", "  ")
	}
	return yaml.Marshal(doc)
}

// Load reads the document at path. A missing file yields an empty document.
func Load(path string) (*Document, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand profile path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return &Document{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles from %s: %w", expanded, err)
	}
	return Parse(data, FormatFor(expanded))
}

// Save writes the document to path atomically, creating the directory.
func Save(path string, doc *Document) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand profile path: %w", err)
	}
	data, err := Marshal(doc, FormatFor(expanded))
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	tmp := expanded + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := os.Rename(tmp, expanded); err != nil {
		return fmt.Errorf("failed to replace %s: %w", expanded, err)
	}
	return nil
}
