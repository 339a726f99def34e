package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/beancharts/internal/ctxlog"
)

// DefaultTimeout bounds a single chart execution. Real analytical queries can
// run for minutes; a stuck handler must not hang the orchestrator forever.
const DefaultTimeout = 10 * time.Minute

// ExecutionError reports a chart that could not be executed or produced no
// usable document.
type ExecutionError struct {
	Chart string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("chart %q: %v", e.Chart, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// chart is one loaded manifest bound to its handler.
type chart struct {
	name        string
	description string
	handlerName string
	timeout     time.Duration
	fn          ChartFunc
}

// Registry maps lowercase chart names to executable chart units.
type Registry struct {
	charts map[string]*chart
	deps   *Deps
}

// Names returns all registered chart names, lowercase and sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.charts))
	for name := range r.charts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exists reports whether name is a registered chart. The registry stores
// lowercase names only and does not normalize its input; callers lowercase
// at the boundary.
func (r *Registry) Exists(name string) bool {
	_, ok := r.charts[name]
	return ok
}

// Execute runs the named chart synchronously under its timeout and returns
// the produced document together with the measured wall-clock duration. The
// duration is part of the return value on purpose: callers feed it into the
// refresh telemetry and must not have to fish it out of a side channel.
func (r *Registry) Execute(ctx context.Context, name string) (cty.Value, time.Duration, error) {
	c, ok := r.charts[name]
	if !ok {
		// Callers are expected to check Exists first; reaching this is a
		// programming error, not a recoverable request condition.
		return cty.NilVal, 0, &ExecutionError{Chart: name, Err: errors.New("no such chart")}
	}

	logger := ctxlog.FromContext(ctx).With("chart", name)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	doc, err := runChart(ctx, c, r.deps)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("Chart execution failed.", "error", err, "run_time_seconds", elapsed.Seconds())
		return cty.NilVal, elapsed, &ExecutionError{Chart: name, Err: err}
	}
	if doc.IsNull() || !doc.IsKnown() {
		logger.Error("Chart executed but produced no document.", "run_time_seconds", elapsed.Seconds())
		return cty.NilVal, elapsed, &ExecutionError{Chart: name, Err: errors.New("executed but produced no document")}
	}

	logger.Info("Chart executed.", "run_time_seconds", elapsed.Seconds())
	return doc, elapsed, nil
}

// runChart isolates handler panics. Chart handlers are arbitrary analytical
// code; a panic in one must degrade into a per-chart error.
func runChart(ctx context.Context, c *chart, deps *Deps) (doc cty.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return c.fn(ctx, deps)
}
