package indices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ridge/must/v2"
)

// Load reads a JSON list of definitions and validates each of them
func Load(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a JSON list of definitions
func Parse(data []byte) ([]Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	var defs []Definition
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("parsing index definitions: %w", err)
	}
	seen := map[string]bool{}
	for _, def := range defs {
		if _, err := def.Validate(); err != nil {
			return nil, err
		}
		id := def.Workspace + "/" + def.Name
		if seen[id] {
			return nil, fmt.Errorf("duplicate index definition %s", id)
		}
		seen[id] = true
	}
	return defs, nil
}

// Watch calls fn with the definitions loaded from path every time the file
// is written or replaced, until the context is closed. The first call happens
// immediately.
func Watch(ctx context.Context, path string, fn func([]Definition, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer must.Do(w.Close)

	// Editors replace files instead of writing them, so watch the directory
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	fn(Load(path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fn(Load(path))
			}
		case err := <-w.Errors:
			return err
		}
	}
}
