package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Screen holds the persisted UI preferences of one screen.
type Screen struct {
	PageSize int    `yaml:"page_size,omitempty"`
	View     string `yaml:"view,omitempty"`
}

// Prefs represents persisted UI preferences.
type Prefs struct {
	Screens map[string]Screen `yaml:"screens,omitempty"`
}

// PageSize returns the saved page size for screen.
func (p Prefs) PageSize(screen string) (int, bool) {
	n := p.Screens[screen].PageSize
	return n, n > 0
}

// View returns the last active view of screen.
func (p Prefs) View(screen string) (string, bool) {
	v := p.Screens[screen].View
	return v, v != ""
}

// Load reads preferences from path. A missing file yields empty prefs.
func Load(path string) (Prefs, error) {
	var p Prefs
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read prefs: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Prefs{}, fmt.Errorf("parse prefs %s: %w", path, err)
	}
	return p, nil
}

// Store is a prefs file kept in memory and written through on every save.
type Store struct {
	mu    sync.Mutex
	path  string
	prefs Prefs
}

// Open loads path into a Store. An empty path keeps prefs in memory only.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.prefs = p
	return s, nil
}

// Prefs returns a copy of the current preferences.
func (s *Store) Prefs() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Prefs{Screens: make(map[string]Screen, len(s.prefs.Screens))}
	for k, v := range s.prefs.Screens {
		out.Screens[k] = v
	}
	return out
}

// SavePageSize persists the page size of screen.
func (s *Store) SavePageSize(screen string, n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid page size: %d", n)
	}
	return s.update(screen, func(sc *Screen) { sc.PageSize = n })
}

// SaveView persists the last active view of screen.
func (s *Store) SaveView(screen, view string) error {
	return s.update(screen, func(sc *Screen) { sc.View = view })
}

func (s *Store) update(screen string, fn func(*Screen)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs.Screens == nil {
		s.prefs.Screens = map[string]Screen{}
	}
	sc := s.prefs.Screens[screen]
	fn(&sc)
	s.prefs.Screens[screen] = sc
	if s.path == "" {
		return nil
	}
	return write(s.path, s.prefs)
}

func write(path string, p Prefs) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
