// Package state implements the per-component state container.
//
// A Container holds a flat map of values owned by exactly one component.
// Every mutation goes through Merge, which shallow-merges a Patch, asks the
// host for a re-render, and then runs the caller's callback. Re-render
// requests are coalesced: several merges between two frames produce one
// request, and the frame shows the last value written for each key.
//
// A Container is not safe for concurrent use; it must only be touched from
// the loop goroutine (see internal/loop).
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/metrics"
)

var (
	// ErrInvalidPatch is returned when a patch fails validation. State is
	// left untouched.
	ErrInvalidPatch = errors.New("invalid state patch")
	// ErrDetached is returned by Merge after the owning component has been
	// unmounted. Late network responses routinely hit this; it is a
	// diagnostic, not a failure.
	ErrDetached = errors.New("state container detached")
)

// Patch is a partial state update. Nested values are replaced wholesale,
// never merged.
type Patch map[string]any

// Renderer receives re-render requests.
type Renderer interface {
	RequestRender()
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func()

// RequestRender calls f.
func (f RendererFunc) RequestRender() { f() }

// Validator checks one patch entry before anything is applied.
type Validator func(key string, value any) error

// Option configures a Container.
type Option func(*Container)

// WithRenderer sets the render requester.
func WithRenderer(r Renderer) Option {
	return func(c *Container) { c.renderer = r }
}

// WithValidator installs a per-entry validator.
func WithValidator(v Validator) Option {
	return func(c *Container) { c.validate = v }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithMetrics records merges and rejections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Container) { c.metrics = m }
}

// WithOwner labels diagnostics with the owning component.
func WithOwner(owner string) Option {
	return func(c *Container) { c.owner = owner }
}

// Container is a component's mutable state.
type Container struct {
	values   map[string]any
	renderer Renderer
	validate Validator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	owner    string

	renderPending bool
	detached      bool
}

// New creates a container seeded with a copy of initial.
func New(initial Patch, opts ...Option) *Container {
	c := &Container{values: make(map[string]any, len(initial))}
	maps.Copy(c.values, initial)
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	return c
}

// SetRenderer replaces the render requester. Hosts call this when the
// component is attached to a surface.
func (c *Container) SetRenderer(r Renderer) {
	c.renderer = r
}

// Merge validates patch, applies it by shallow merge, requests a render and
// then calls onApplied (if non-nil) exactly once. A patch is applied fully or
// not at all.
func (c *Container) Merge(patch Patch, onApplied func()) error {
	if c.detached {
		c.metrics.StateRejected()
		c.logger.Debug("dropping state patch for unmounted component",
			slog.String("owner", c.owner),
			slog.Int("keys", len(patch)))
		return ErrDetached
	}
	for k, v := range patch {
		if k == "" {
			c.metrics.StateRejected()
			return fmt.Errorf("%w: empty key", ErrInvalidPatch)
		}
		if c.validate != nil {
			if err := c.validate(k, v); err != nil {
				c.metrics.StateRejected()
				return fmt.Errorf("%w: %s: %v", ErrInvalidPatch, k, err)
			}
		}
	}

	maps.Copy(c.values, patch)
	c.metrics.StateMerged()
	c.requestRender()

	if onApplied != nil {
		onApplied()
	}
	return nil
}

func (c *Container) requestRender() {
	if c.renderPending || c.renderer == nil {
		return
	}
	c.renderPending = true
	c.renderer.RequestRender()
}

// RenderPending reports whether a render has been requested but not flushed.
func (c *Container) RenderPending() bool {
	return c.renderPending
}

// Flushed tells the container that the host rendered a frame; the next merge
// requests a new render.
func (c *Container) Flushed() {
	c.renderPending = false
}

// Get returns the value for key.
func (c *Container) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Snapshot returns a shallow copy of the current state.
func (c *Container) Snapshot() Patch {
	return maps.Clone(Patch(c.values))
}

// Detach makes every further Merge a no-op. Called on unmount.
func (c *Container) Detach() {
	c.detached = true
	c.renderPending = false
}

// Detached reports whether the container has been detached.
func (c *Container) Detached() bool {
	return c.detached
}

// Value returns the typed value for key. ok is false when the key is missing
// or holds a different type.
func Value[T any](c *Container, key string) (T, bool) {
	v, ok := c.values[key]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// ValueOr returns the typed value for key or def.
func ValueOr[T any](c *Container, key string, def T) T {
	if v, ok := Value[T](c, key); ok {
		return v
	}
	return def
}
