package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/metrics"
	"github.com/interpretive-systems/erpview/internal/notify"
)

// ItemFunc performs a bulk action on one item.
type ItemFunc func(ctx context.Context, id string) error

// BulkResult is the aggregate outcome of a bulk action.
type BulkResult struct {
	Action    string
	Succeeded []string
	Failed    []string
	Errors    map[string]error
}

// Total is the number of items attempted.
func (r BulkResult) Total() int { return len(r.Succeeded) + len(r.Failed) }

// Level maps the outcome to a notification level: success when every item
// succeeded, error when every item failed, warning otherwise.
func (r BulkResult) Level() notify.Level {
	switch {
	case r.Total() == 0:
		return notify.Info
	case len(r.Failed) == 0:
		return notify.Success
	case len(r.Succeeded) == 0:
		return notify.Error
	default:
		return notify.Warning
	}
}

// Summary is a one-line description for notifications and CLI output.
func (r BulkResult) Summary() string {
	if r.Total() == 0 {
		return fmt.Sprintf("%s: nothing to do", r.Action)
	}
	if len(r.Failed) == 0 {
		return fmt.Sprintf("%s: %d succeeded", r.Action, len(r.Succeeded))
	}
	return fmt.Sprintf("%s: %d succeeded, %d failed (%s)",
		r.Action, len(r.Succeeded), len(r.Failed), strings.Join(r.Failed, ", "))
}

// Err joins the per-item errors in item order, or returns nil.
func (r BulkResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, id := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", id, r.Errors[id]))
	}
	return errors.Join(errs...)
}

// Runner executes bulk actions item by item.
type Runner struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Run calls fn for every id in order. A failing or panicking item is logged
// and recorded; the remaining items still run. Once ctx is done the
// remaining items are recorded as failed with the context error.
func (r Runner) Run(ctx context.Context, action string, ids []string, fn ItemFunc) BulkResult {
	log := logging.OrNop(r.Logger).With(slog.String("action", action))
	res := BulkResult{Action: action, Errors: map[string]error{}}
	for _, id := range ids {
		err := ctx.Err()
		if err == nil {
			err = runItem(ctx, id, fn)
		}
		if err != nil {
			log.Warn("bulk item failed", slog.String("id", id), slog.Any("error", err))
			res.Failed = append(res.Failed, id)
			res.Errors[id] = err
			r.Metrics.BulkItem(action, "failed")
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		r.Metrics.BulkItem(action, "ok")
	}
	log.Info("bulk action finished",
		slog.Int("succeeded", len(res.Succeeded)),
		slog.Int("failed", len(res.Failed)))
	return res
}

func runItem(ctx context.Context, id string, fn ItemFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, id)
}

// RunBulk runs fn over ids with the controller's logger and metrics. It
// blocks; call it off the loop.
func (c *Controller[T]) RunBulk(ctx context.Context, action string, ids []string, fn ItemFunc) BulkResult {
	return Runner{Logger: c.log, Metrics: c.metrics}.Run(ctx, action, ids, fn)
}
