// Package refresh decides, per requested chart, whether the cached artifact
// is still fresh or must be recomputed, and drives the recompute-resolve-
// persist cycle. It is the only writer of the artifact bucket.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"golang.org/x/sync/errgroup"

	"github.com/vk/beancharts/internal/ctxlog"
	"github.com/vk/beancharts/internal/store"
	"github.com/vk/beancharts/internal/vegapath"
)

// DefaultMaxAge is the staleness window: an artifact older than this is
// recomputed on next access.
const DefaultMaxAge = 15 * time.Minute

// Outcome statuses. A failed chart carries the error text as its status.
const (
	StatusRecomputed = "recomputed"
	StatusUseCached  = "use_cached"
)

// Catalog is the chart registry as the orchestrator sees it.
type Catalog interface {
	Names() []string
	Exists(name string) bool
	Execute(ctx context.Context, name string) (cty.Value, time.Duration, error)
}

// ObjectStore is the artifact bucket as the orchestrator sees it.
type ObjectStore interface {
	Stat(ctx context.Context, key string, now time.Time) (store.Info, error)
	Put(ctx context.Context, key string, payload []byte) error
}

// Outcome is the per-chart result of one refresh request.
type Outcome struct {
	Status         string   `json:"status"`
	RunTimeSeconds *float64 `json:"run_time_seconds"`
}

// envelope is the persisted artifact payload. Width paths are baked in at
// persist time so the frontend only ever fetches one object per chart.
type envelope struct {
	Timestamp      string               `json:"timestamp"`
	RunTimeSeconds float64              `json:"run_time_seconds"`
	Spec           json.RawMessage      `json:"spec"`
	WidthPaths     []vegapath.WidthPath `json:"width_paths"`
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	// MaxAge is the staleness window.
	MaxAge time.Duration
	// Concurrency bounds how many charts refresh at once within one request.
	Concurrency int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Orchestrator evaluates refresh requests. It holds no mutable state between
// requests; the catalog and store it depends on are read-only or external.
type Orchestrator struct {
	catalog Catalog
	store   ObjectStore
	maxAge  time.Duration
	limit   int
	now     func() time.Time
}

// New wires an orchestrator from its collaborators.
func New(catalog Catalog, objectStore ObjectStore, opts Options) *Orchestrator {
	o := &Orchestrator{
		catalog: catalog,
		store:   objectStore,
		maxAge:  opts.MaxAge,
		limit:   opts.Concurrency,
		now:     opts.Now,
	}
	if o.maxAge <= 0 {
		o.maxAge = DefaultMaxAge
	}
	if o.limit <= 0 {
		o.limit = 4
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Refresh resolves the raw chart selector and refreshes every resolved chart
// independently. It returns the per-chart outcome map and the aggregate HTTP
// status: 200 when every chart succeeded, 500 when at least one failed. A
// selector that cannot be resolved returns a nil map, 404 and a ResolveError;
// nothing is processed in that case.
func (o *Orchestrator) Refresh(ctx context.Context, raw string, force bool) (map[string]Outcome, int, error) {
	names, err := o.resolveNames(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return nil, http.StatusNotFound, err
	}

	results := make(map[string]Outcome, len(names))
	var mu sync.Mutex

	// Failures are collected as data, never as group errors: one chart's
	// failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(o.limit)
	for _, name := range names {
		name := name
		g.Go(func() error {
			outcome := o.refreshOne(ctx, name, force)
			mu.Lock()
			results[name] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are outcomes

	code := http.StatusOK
	for _, outcome := range results {
		if outcome.Status != StatusRecomputed && outcome.Status != StatusUseCached {
			code = http.StatusInternalServerError
			break
		}
	}
	return results, code, nil
}

// refreshOne runs the staleness protocol for a single chart. Every error on
// the way, including a panic, degrades into a failed outcome for this chart
// only.
func (o *Orchestrator) refreshOne(ctx context.Context, name string, force bool) (out Outcome) {
	logger := ctxlog.FromContext(ctx).With("chart", name)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Chart refresh panicked.", "panic", r)
			out = failedOutcome(fmt.Errorf("%v", r))
		}
	}()

	now := o.now().UTC()
	key := objectKey(name)

	info, err := o.store.Stat(ctx, key, now)
	if err != nil {
		logger.Error("Artifact lookup failed.", "error", err)
		return failedOutcome(err)
	}

	if !force && info.Exists && info.AgeSeconds < o.maxAge.Seconds() {
		logger.Debug("Artifact still fresh, serving cached.", "age_seconds", info.AgeSeconds)
		return Outcome{Status: StatusUseCached}
	}

	doc, elapsed, err := o.catalog.Execute(ctx, name)
	if err != nil {
		return failedOutcome(err)
	}

	widthPaths, err := vegapath.Resolve(doc)
	if err != nil {
		logger.Error("Width path resolution failed.", "error", err)
		return failedOutcome(err)
	}

	payload, err := encodeEnvelope(now, elapsed, doc, widthPaths)
	if err != nil {
		logger.Error("Artifact encoding failed.", "error", err)
		return failedOutcome(err)
	}

	if err := o.store.Put(ctx, key, payload); err != nil {
		logger.Error("Artifact upload failed.", "error", err)
		return failedOutcome(err)
	}

	secs := elapsed.Seconds()
	logger.Info("Chart recomputed.", "run_time_seconds", secs, "width_paths", len(widthPaths), "force", force)
	return Outcome{Status: StatusRecomputed, RunTimeSeconds: &secs}
}

func encodeEnvelope(now time.Time, elapsed time.Duration, doc cty.Value, widthPaths []vegapath.WidthPath) ([]byte, error) {
	rawSpec, err := ctyjson.Marshal(doc, doc.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize chart document: %w", err)
	}
	if widthPaths == nil {
		widthPaths = []vegapath.WidthPath{}
	}
	return json.Marshal(envelope{
		Timestamp:      now.Format(time.RFC3339Nano),
		RunTimeSeconds: elapsed.Seconds(),
		Spec:           rawSpec,
		WidthPaths:     widthPaths,
	})
}

// objectKey is the bucket location of one chart's artifact. The frontend
// hardcodes the same layout on its read path.
func objectKey(name string) string {
	return "schemas/" + name + ".json"
}

// failedOutcome converts an error into response data. API consumers must
// never see an empty error, so blank messages get a generic substitute.
func failedOutcome(err error) Outcome {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "Internal Server Error"
	}
	return Outcome{Status: msg}
}
