package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-fra/internal/feature"
)

// StyleService manages the category style table.
type StyleService struct {
	path  string
	table feature.StyleTable
	mu    sync.RWMutex
}

// NewStyleService loads the style table from path, starting from the
// built-in defaults. Entries in the file override or extend the defaults.
func NewStyleService(path string) (*StyleService, error) {
	s := &StyleService{path: path, table: feature.DefaultStyles()}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

// Table returns a copy of the current style table.
func (s *StyleService) Table() feature.StyleTable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := feature.StyleTable{
		Styles:   make(map[feature.Category]feature.Style, len(s.table.Styles)),
		Fallback: s.table.Fallback,
	}
	for k, v := range s.table.Styles {
		out.Styles[k] = v
	}
	return out
}

// Lookup resolves a category against the current table.
func (s *StyleService) Lookup(c feature.Category) (feature.Style, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Lookup(c)
}

// Put sets the style of a category and persists the table.
func (s *StyleService) Put(c feature.Category, style feature.Style) error {
	if c == feature.Uncategorized {
		return fmt.Errorf("category is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.table.Styles[c] = style
	return s.saveToDisk()
}

// Delete removes a category style so it falls back again.
func (s *StyleService) Delete(c feature.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.table.Styles[c]; !ok {
		return fmt.Errorf("style %q not found", c)
	}
	delete(s.table.Styles, c)
	return s.saveToDisk()
}

// loadFromDisk merges the YAML file into the table. A missing file is not
// an error.
func (s *StyleService) loadFromDisk() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading styles: %w", err)
	}

	var file feature.StyleTable
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing styles %s: %w", s.path, err)
	}
	for k, v := range file.Styles {
		s.table.Styles[k] = v
	}
	if file.Fallback != (feature.Style{}) {
		s.table.Fallback = file.Fallback
	}
	return nil
}

// saveToDisk persists the table as YAML. Without a path it only keeps the
// table in memory.
func (s *StyleService) saveToDisk() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s.table)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
