// Package registry holds the screens available to a host. A Registry is
// built once at startup, filled by each screen package's Register function
// and passed to the host; there is no global lookup.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/interpretive-systems/erpview/internal/api"
	"github.com/interpretive-systems/erpview/internal/config"
	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/node"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/prefs"
	"github.com/interpretive-systems/erpview/internal/table"
)

var (
	ErrUnknownScreen  = errors.New("unknown screen")
	ErrDuplicate      = errors.New("screen already registered")
	ErrUnknownAction  = errors.New("unknown bulk action")
	ErrUnknownIntent  = errors.New("unknown intent")
	ErrRegistryClosed = errors.New("registry closed")
)

// Intent kinds understood by every screen.
const (
	KindView   = "screen.view"
	KindReload = "screen.reload"
)

// Screen is a mounted-or-mountable ERP screen.
type Screen interface {
	lifecycle.Component
	ID() uuid.UUID
	Name() string
	Title() string
	Views() []string
	View() string
	Loading() bool
	// Build renders the current state.
	Build() node.Node
	// HandleIntent applies an intent from a tree returned by Build. It must
	// be called on the loop.
	HandleIntent(ctx context.Context, in node.Intent) error
	// Flushed reports that the host rendered a frame.
	Flushed()
}

// BulkScreen is implemented by screens with bulk actions that can run
// outside the interactive host.
type BulkScreen interface {
	BulkActions() []string
	BulkItem(action string) (table.ItemFunc, error)
}

// Env is what every screen is built with.
type Env struct {
	Deps    lifecycle.Deps
	API     api.Requester
	Prefs   *prefs.Store
	Config  *config.Config
	Confirm notify.Confirmer
}

// Info describes a registered screen.
type Info struct {
	Name  string
	Title string
	Views []string
}

// Factory builds an unmounted screen.
type Factory func(env Env, props lifecycle.Props) (Screen, error)

type entry struct {
	info    Info
	factory Factory
}

// Registry maps screen names to factories and tracks the screens it built
// so Close can unmount them.
type Registry struct {
	mu      sync.Mutex
	env     Env
	log     *slog.Logger
	entries map[string]entry
	live    map[uuid.UUID]Screen
	closed  bool
}

// New creates a registry whose screens are built with env.
func New(env Env) *Registry {
	return &Registry{
		env:     env,
		log:     logging.OrNop(env.Deps.Logger).With(slog.String("component", "registry")),
		entries: map[string]entry{},
		live:    map[uuid.UUID]Screen{},
	}
}

// Env returns the environment screens are built with.
func (r *Registry) Env() Env { return r.env }

// Register adds a screen factory.
func (r *Registry) Register(info Info, f Factory) error {
	if info.Name == "" || f == nil {
		return fmt.Errorf("register: name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[info.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, info.Name)
	}
	r.entries[info.Name] = entry{info: info, factory: f}
	return nil
}

// Names returns the registered screen names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Info returns the description of a registered screen.
func (r *Registry) Info(name string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownScreen, name)
	}
	return e.info, nil
}

// Create builds a new, unmounted instance of the named screen.
func (r *Registry) Create(name string, props lifecycle.Props) (Screen, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScreen, name)
	}

	s, err := e.factory(r.env, props)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	r.mu.Lock()
	r.live[s.ID()] = s
	r.mu.Unlock()
	r.log.Debug("screen created", slog.String("screen", name), slog.String("id", s.ID().String()))
	return s, nil
}

// Release unmounts s and forgets it.
func (r *Registry) Release(s Screen) {
	if s == nil {
		return
	}
	s.Unmount()
	r.mu.Lock()
	delete(r.live, s.ID())
	r.mu.Unlock()
}

// Live returns the number of screens created and not yet released.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Close unmounts every live screen. Create fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	live := make([]Screen, 0, len(r.live))
	for _, s := range r.live {
		live = append(live, s)
	}
	clear(r.live)
	r.mu.Unlock()

	for _, s := range live {
		s.Unmount()
	}
	r.log.Debug("registry closed", slog.Int("unmounted", len(live)))
}
