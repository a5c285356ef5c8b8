// Package polling runs recurring live-data feeds.
//
// A feed is identified by a key. Start is idempotent per key and Stop is
// safe to call at any time. Each tick fetches off the loop and applies the
// result on the loop; a tick is skipped while the previous fetch for the same
// feed is still running, and a result that completes after its feed was
// stopped is discarded instead of applied.
package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/loop"
	"github.com/interpretive-systems/erpview/internal/metrics"
)

var (
	ErrInvalidInterval = errors.New("feed interval must be positive")
	ErrNilTask         = errors.New("feed task is nil")
	ErrUnknownFeed     = errors.New("feed not running")
)

// Task fetches data for one tick and returns the closure that applies it.
type Task interface {
	fetch(ctx context.Context) (apply func(), err error)
}

type taskFunc func(ctx context.Context) (func(), error)

func (f taskFunc) fetch(ctx context.Context) (func(), error) { return f(ctx) }

// NewTask pairs a fetch function (run off the loop) with an apply function
// (run on the loop, only while the feed is still current).
func NewTask[T any](fetch func(ctx context.Context) (T, error), apply func(T)) Task {
	return taskFunc(func(ctx context.Context) (func(), error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func() { apply(v) }, nil
	})
}

// ErrorHandler receives failed ticks on the loop goroutine.
type ErrorHandler func(key string, err error)

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithErrorHandler is called for every failed tick of every feed.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Scheduler) { s.onError = h }
}

// FeedOption configures one feed.
type FeedOption func(*handle)

// Immediately runs the first tick right away instead of after one interval.
func Immediately() FeedOption {
	return func(h *handle) { h.immediate = true }
}

// OnError overrides the scheduler-wide error handler for one feed.
func OnError(fn ErrorHandler) FeedOption {
	return func(h *handle) { h.onError = fn }
}

type handle struct {
	key       string
	interval  time.Duration
	task      Task
	immediate bool
	onError   ErrorHandler

	job      gocron.Job
	inFlight atomic.Bool
	stopped  atomic.Bool
}

// Scheduler owns every running feed.
type Scheduler struct {
	cron    gocron.Scheduler
	loop    loop.Loop
	logger  *slog.Logger
	metrics *metrics.Metrics
	onError ErrorHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	feeds map[string]*handle
}

// New creates and starts a scheduler whose results are applied on lp.
func New(lp loop.Loop, opts ...Option) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron,
		loop:   lp,
		ctx:    ctx,
		cancel: cancel,
		feeds:  make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	s.cron.Start()
	return s, nil
}

// Start schedules task every interval under key. Starting a key that is
// already running is a no-op.
func (s *Scheduler) Start(key string, interval time.Duration, task Task, opts ...FeedOption) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, key)
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrNilTask, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feeds[key]; ok {
		return nil
	}

	h := &handle{key: key, interval: interval, task: task}
	for _, opt := range opts {
		opt(h)
	}

	jobOpts := []gocron.JobOption{
		gocron.WithName(key),
		gocron.WithTags(key),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if h.immediate {
		jobOpts = append(jobOpts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.cron.NewJob(gocron.DurationJob(interval), gocron.NewTask(s.tick, h), jobOpts...)
	if err != nil {
		return fmt.Errorf("schedule feed %s: %w", key, err)
	}
	h.job = job
	s.feeds[key] = h
	s.metrics.SetActiveFeeds(len(s.feeds))
	s.logger.Debug("feed started", slog.String("feed", key), slog.Duration("interval", interval))
	return nil
}

// Stop cancels the feed under key. Stopping an unknown key is a no-op. A
// fetch already in flight finishes but its result is discarded.
func (s *Scheduler) Stop(key string) {
	s.mu.Lock()
	h, ok := s.feeds[key]
	if ok {
		delete(s.feeds, key)
		s.metrics.SetActiveFeeds(len(s.feeds))
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.release(h)
}

// StopPrefix stops every feed whose key starts with prefix and returns the
// stopped keys.
func (s *Scheduler) StopPrefix(prefix string) []string {
	s.mu.Lock()
	var victims []*handle
	for k, h := range s.feeds {
		if strings.HasPrefix(k, prefix) {
			victims = append(victims, h)
			delete(s.feeds, k)
		}
	}
	s.metrics.SetActiveFeeds(len(s.feeds))
	s.mu.Unlock()

	keys := make([]string, 0, len(victims))
	for _, h := range victims {
		s.release(h)
		keys = append(keys, h.key)
	}
	slices.Sort(keys)
	return keys
}

// StopAll stops every feed.
func (s *Scheduler) StopAll() {
	s.StopPrefix("")
}

func (s *Scheduler) release(h *handle) {
	h.stopped.Store(true)
	if err := s.cron.RemoveJob(h.job.ID()); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		s.logger.Warn("failed to remove feed job", slog.String("feed", h.key), slog.Any("error", err))
	}
	s.logger.Debug("feed stopped", slog.String("feed", h.key))
}

// RunNow triggers an extra tick for key without changing its schedule. The
// in-flight rule still applies.
func (s *Scheduler) RunNow(key string) error {
	s.mu.Lock()
	h, ok := s.feeds[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFeed, key)
	}
	return h.job.RunNow()
}

// Running reports whether key is scheduled.
func (s *Scheduler) Running(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.feeds[key]
	return ok
}

// Active returns the scheduled keys in sorted order.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.feeds))
	for k := range s.feeds {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	slices.Sort(keys)
	return keys
}

// Jobs returns the IDs of the timers registered with the underlying
// scheduler. It always matches Active one to one.
func (s *Scheduler) Jobs() []uuid.UUID {
	jobs := s.cron.Jobs()
	ids := make([]uuid.UUID, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID())
	}
	return ids
}

// Shutdown stops all feeds and the timer goroutines.
func (s *Scheduler) Shutdown() error {
	s.StopAll()
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown gocron scheduler: %w", err)
	}
	return nil
}

// current reports whether h is still the registered handle for its key.
func (s *Scheduler) current(h *handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds[h.key] == h && !h.stopped.Load()
}

// tick runs on a gocron worker goroutine.
func (s *Scheduler) tick(h *handle) {
	if h.stopped.Load() {
		return
	}
	if !h.inFlight.CompareAndSwap(false, true) {
		s.metrics.FeedSkip(h.key)
		s.logger.Debug("feed tick skipped, previous still in flight", slog.String("feed", h.key))
		return
	}
	s.metrics.FeedTick(h.key)

	apply, err := s.safeFetch(h)
	h.inFlight.Store(false)

	s.loop.Post(func() {
		if !s.current(h) {
			s.metrics.FeedDiscard(h.key)
			s.logger.Debug("discarding result of stopped feed", slog.String("feed", h.key))
			return
		}
		if err != nil {
			s.metrics.FeedFailure(h.key)
			s.logger.Warn("feed tick failed", slog.String("feed", h.key), slog.Any("error", err))
			switch {
			case h.onError != nil:
				h.onError(h.key, err)
			case s.onError != nil:
				s.onError(h.key, err)
			}
			return
		}
		if apply != nil {
			apply()
		}
	})
}

func (s *Scheduler) safeFetch(h *handle) (apply func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			apply, err = nil, fmt.Errorf("feed %s panicked: %v", h.key, r)
		}
	}()
	return h.task.fetch(s.ctx)
}
