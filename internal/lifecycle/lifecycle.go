// Package lifecycle sequences a component from mount to unmount.
//
// A Controller is the runtime half of a screen: it owns the component's
// identity, props, state container and live feeds, and it drives the screen's
// Hooks in a fixed order:
//
//	Mount:       LoadInitial, then LoadView(current) and the current view's feeds
//	View change: stop old view feeds, LoadView(new), start new view feeds
//	Unmount:     stop every feed, Release, run disposers, detach state
//
// Loads run off the loop and are applied only if they are still the latest
// request for a still-current view; anything else is dropped as stale.
// Unmount is terminal: a controller cannot be mounted twice.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/loop"
	"github.com/interpretive-systems/erpview/internal/metrics"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/polling"
	"github.com/interpretive-systems/erpview/internal/state"
)

var (
	ErrAlreadyMounted = errors.New("component already mounted")
	ErrUnmounted      = errors.New("component is not mounted")
)

// KeyView is the state key holding the active view name.
const KeyView = "view"

// Phase is a lifecycle phase.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseMounted
	PhaseUnmounted
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseMounted:
		return "mounted"
	case PhaseUnmounted:
		return "unmounted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Component is the capability every screen exposes to its host.
type Component interface {
	Mount(ctx context.Context) error
	Unmount()
	HandleViewChange(ctx context.Context, view string) error
}

// FeedSpec declares a live feed owned by a view.
type FeedSpec struct {
	Name      string
	Interval  time.Duration
	Task      polling.Task
	Immediate bool
}

// Hooks are implemented by each screen. Loads return the patch to merge;
// they run off the loop and must not touch state directly.
type Hooks interface {
	LoadInitial(ctx context.Context) (state.Patch, error)
	LoadView(ctx context.Context, view string) (state.Patch, error)
	Feeds(view string) []FeedSpec
	Release()
}

// NopHooks can be embedded to implement only the hooks a screen needs.
type NopHooks struct{}

func (NopHooks) LoadInitial(context.Context) (state.Patch, error) { return nil, nil }
func (NopHooks) LoadView(context.Context, string) (state.Patch, error) { return nil, nil }
func (NopHooks) Feeds(string) []FeedSpec { return nil }
func (NopHooks) Release() {}

// FeedScheduler is the part of polling.Scheduler a controller uses.
type FeedScheduler interface {
	Start(key string, interval time.Duration, task polling.Task, opts ...polling.FeedOption) error
	StopPrefix(prefix string) []string
}

// Deps are the collaborators shared by every controller.
type Deps struct {
	Loop     loop.Loop
	Executor loop.Executor
	Feeds    FeedScheduler
	Notify   notify.Sink
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Renderer state.Renderer
}

// Props are immutable initialization data supplied by the owner.
type Props map[string]string

// Option configures a Controller.
type Option func(*Controller)

// WithInitialState seeds the state container.
func WithInitialState(p state.Patch) Option {
	return func(c *Controller) { c.initial = p }
}

// WithView sets the view activated on mount.
func WithView(view string) Option {
	return func(c *Controller) { c.view = view }
}

// WithValidator installs a state validator.
func WithValidator(v state.Validator) Option {
	return func(c *Controller) { c.validator = v }
}

// Controller implements Component on top of a screen's Hooks.
type Controller struct {
	id    uuid.UUID
	name  string
	props Props
	hooks Hooks
	deps  Deps
	log   *slog.Logger
	state *state.Container

	initial   state.Patch
	validator state.Validator

	phase     Phase
	view      string
	viewGen   uint64
	loadSeq   uint64
	pending   int
	disposers []func()
}

// New creates a controller for the screen called name. The state container
// is created here; nothing is loaded and no feed starts until Mount.
func New(name string, props Props, hooks Hooks, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		id:    uuid.New(),
		name:  name,
		props: maps.Clone(props),
		hooks: hooks,
		deps:  deps,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.deps.Executor == nil {
		c.deps.Executor = &loop.Goroutines{}
	}
	if c.deps.Notify == nil {
		c.deps.Notify = notify.Discard
	}
	c.log = logging.OrNop(deps.Logger).With(slog.String("screen", name), slog.String("component", c.id.String()))

	initial := maps.Clone(c.initial)
	if initial == nil {
		initial = state.Patch{}
	}
	initial[KeyView] = c.view
	stateOpts := []state.Option{
		state.WithLogger(c.log),
		state.WithMetrics(deps.Metrics),
		state.WithOwner(name),
	}
	if deps.Renderer != nil {
		stateOpts = append(stateOpts, state.WithRenderer(deps.Renderer))
	}
	if c.validator != nil {
		stateOpts = append(stateOpts, state.WithValidator(c.validator))
	}
	c.state = state.New(initial, stateOpts...)
	return c
}

func (c *Controller) ID() uuid.UUID { return c.id }

func (c *Controller) Name() string { return c.name }

// Prop returns one prop value.
func (c *Controller) Prop(key string) string { return c.props[key] }

// Props returns a copy of the props.
func (c *Controller) Props() Props { return maps.Clone(c.props) }

func (c *Controller) State() *state.Container { return c.state }

func (c *Controller) Phase() Phase { return c.phase }

func (c *Controller) Mounted() bool { return c.phase == PhaseMounted }

// View returns the active view.
func (c *Controller) View() string { return c.view }

// Loading reports whether any load is still outstanding.
func (c *Controller) Loading() bool { return c.pending > 0 }

// Logger returns the controller's scoped logger.
func (c *Controller) Logger() *slog.Logger { return c.log }

// Notify returns the notification sink.
func (c *Controller) Notify() notify.Sink { return c.deps.Notify }

// Merge is shorthand for State().Merge.
func (c *Controller) Merge(p state.Patch, onApplied func()) error {
	return c.state.Merge(p, onApplied)
}

// OnDispose registers cleanup run on unmount, last registered first. When
// the controller is already unmounted cleanup runs immediately.
func (c *Controller) OnDispose(cleanup func()) {
	if cleanup == nil {
		return
	}
	if c.phase == PhaseUnmounted {
		cleanup()
		return
	}
	c.disposers = append(c.disposers, cleanup)
}

// Mount runs the initial-data hook and then activates the current view.
func (c *Controller) Mount(ctx context.Context) error {
	switch c.phase {
	case PhaseMounted:
		return ErrAlreadyMounted
	case PhaseUnmounted:
		return fmt.Errorf("%w: %s cannot be re-mounted", ErrUnmounted, c.name)
	}
	c.phase = PhaseMounted
	c.log.Debug("mounting", slog.String("view", c.view))

	gen := c.viewGen
	c.pending++
	loop.Async(c.deps.Executor, c.deps.Loop, func() func() {
		patch, err := safeLoad(ctx, c.hooks.LoadInitial)
		return func() {
			c.pending--
			if c.phase != PhaseMounted {
				c.log.Debug("initial load finished after unmount")
				return
			}
			c.apply("initial data", patch, err)
			// A view change during the initial load already activated the
			// newer view.
			if gen == c.viewGen {
				c.activate(ctx, gen)
			}
		}
	})
	return nil
}

// HandleViewChange switches the active view: the outgoing view's feeds stop
// immediately, the incoming view loads, and its feeds start once the load
// completes if it is still the active view.
func (c *Controller) HandleViewChange(ctx context.Context, view string) error {
	if c.phase != PhaseMounted {
		return ErrUnmounted
	}
	if view == c.view {
		return nil
	}
	c.stopViewFeeds(c.view)
	c.log.Debug("view change", slog.String("from", c.view), slog.String("to", view))

	c.view = view
	c.viewGen++
	if err := c.state.Merge(state.Patch{KeyView: view}, nil); err != nil {
		c.log.Warn("failed to record view", slog.Any("error", err))
	}
	c.activate(ctx, c.viewGen)
	return nil
}

// Reload re-runs the active view's load without touching its feeds. Screens
// call it after saves and table query changes.
func (c *Controller) Reload(ctx context.Context) error {
	if c.phase != PhaseMounted {
		return ErrUnmounted
	}
	c.loadView(ctx, c.viewGen, nil)
	return nil
}

// Async runs work off the loop and applies the returned closure on the loop
// while the component is still mounted. Saves and bulk actions use it.
func (c *Controller) Async(work func() func()) {
	loop.Async(c.deps.Executor, c.deps.Loop, func() func() {
		apply := work()
		if apply == nil {
			return nil
		}
		return func() {
			if c.phase != PhaseMounted {
				c.log.Debug("dropping async result after unmount")
				return
			}
			apply()
		}
	})
}

// Unmount stops every feed, releases screen resources and detaches state.
// Calling it more than once is a no-op.
func (c *Controller) Unmount() {
	if c.phase == PhaseUnmounted {
		return
	}
	wasMounted := c.phase == PhaseMounted
	c.phase = PhaseUnmounted
	c.viewGen++

	if wasMounted && c.deps.Feeds != nil {
		stopped := c.deps.Feeds.StopPrefix(c.feedPrefix())
		c.log.Debug("feeds stopped on unmount", slog.Int("count", len(stopped)))
	}
	c.safeCall("release", c.hooks.Release)
	for i := len(c.disposers) - 1; i >= 0; i-- {
		c.safeCall("dispose", c.disposers[i])
	}
	c.disposers = nil
	c.state.Detach()
	c.log.Debug("unmounted")
}

func (c *Controller) activate(ctx context.Context, gen uint64) {
	c.loadView(ctx, gen, func() { c.startFeeds(c.view) })
}

// loadView runs LoadView for the current view. The patch is applied only if
// this is still the newest load; then runs only if the view is unchanged.
func (c *Controller) loadView(ctx context.Context, gen uint64, then func()) {
	view := c.view
	c.loadSeq++
	seq := c.loadSeq
	c.pending++
	loop.Async(c.deps.Executor, c.deps.Loop, func() func() {
		patch, err := safeLoad(ctx, func(ctx context.Context) (state.Patch, error) {
			return c.hooks.LoadView(ctx, view)
		})
		return func() {
			c.pending--
			if c.phase != PhaseMounted {
				return
			}
			if seq == c.loadSeq && gen == c.viewGen {
				c.apply("view "+view, patch, err)
			} else {
				c.deps.Metrics.StaleDiscarded(c.name)
				c.log.Debug("discarding stale view load",
					slog.String("view", view),
					slog.String("active_view", c.view))
			}
			if gen == c.viewGen && then != nil {
				then()
			}
		}
	})
}

func (c *Controller) apply(what string, patch state.Patch, err error) {
	if err != nil {
		c.deps.Metrics.LoadFailed(c.name)
		c.log.Warn("load failed", slog.String("what", what), slog.Any("error", err))
		notify.Send(c.deps.Notify, notify.Error, fmt.Sprintf("Failed to load %s: %v", what, err))
		return
	}
	if len(patch) == 0 {
		return
	}
	if err := c.state.Merge(patch, nil); err != nil {
		c.log.Warn("load result rejected", slog.String("what", what), slog.Any("error", err))
	}
}

func (c *Controller) startFeeds(view string) {
	if c.deps.Feeds == nil {
		return
	}
	for _, spec := range c.hooks.Feeds(view) {
		// Re-check on every iteration: a feed's Start may not be reached
		// before a view change lands.
		if c.phase != PhaseMounted || c.view != view {
			return
		}
		var opts []polling.FeedOption
		if spec.Immediate {
			opts = append(opts, polling.Immediately())
		}
		key := c.FeedKey(view, spec.Name)
		if err := c.deps.Feeds.Start(key, spec.Interval, spec.Task, opts...); err != nil {
			c.log.Warn("failed to start feed", slog.String("feed", key), slog.Any("error", err))
		}
	}
}

func (c *Controller) stopViewFeeds(view string) {
	if c.deps.Feeds == nil {
		return
	}
	c.deps.Feeds.StopPrefix(c.feedPrefix() + view + "/")
}

func (c *Controller) feedPrefix() string {
	return c.id.String() + "/"
}

// FeedKey returns the scheduler key of a feed owned by this controller.
func (c *Controller) FeedKey(view, name string) string {
	return c.feedPrefix() + view + "/" + name
}

func (c *Controller) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("hook panicked", slog.String("hook", what), slog.Any("panic", r))
		}
	}()
	fn()
}

func safeLoad(ctx context.Context, fn func(context.Context) (state.Patch, error)) (patch state.Patch, err error) {
	defer func() {
		if r := recover(); r != nil {
			patch, err = nil, fmt.Errorf("load panicked: %v", r)
		}
	}()
	return fn(ctx)
}
