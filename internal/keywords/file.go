package keywords

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultFile = "searched_keywords.json"

// FileStore keeps counts as a single JSON object on disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (map[string]int, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]int), nil
		}
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	counts := make(map[string]int)
	if len(strings.TrimSpace(string(payload))) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(payload, &counts); err != nil {
		return nil, fmt.Errorf("decode keywords file: %w", err)
	}
	return counts, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so readers never observe a partial file.
func (s *FileStore) Save(_ context.Context, counts map[string]int) error {
	payload, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create keywords dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".keywords-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace keywords file: %w", err)
	}
	return nil
}
