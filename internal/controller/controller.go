// Package controller orchestrates fetch, classify and layer replacement, and
// is the single owner of what data is currently displayed.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/filter"
	"github.com/joeblew999/plat-fra/internal/layer"
	"github.com/joeblew999/plat-fra/internal/metrics"
	"github.com/joeblew999/plat-fra/internal/service"
)

// ErrSuperseded is returned by a reload whose response arrived after a newer
// reload was requested. Its result is discarded.
var ErrSuperseded = errors.New("reload superseded by a newer request")

// State is the controller's load state.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Fetcher returns the features matching a snapshot.
type Fetcher interface {
	Features(ctx context.Context, snap filter.Snapshot) ([]feature.Feature, error)
}

// Recorder persists successful loads.
type Recorder interface {
	Record(ctx context.Context, s Summary) error
}

// Summary describes the last successful load.
type Summary struct {
	Filters    map[string]string        `json:"filters" doc:"Filter snapshot the data was loaded with"`
	Total      int                      `json:"total" doc:"Total number of features"`
	Categories map[feature.Category]int `json:"categories" doc:"Feature count per category"`
	LoadedAt   time.Time                `json:"loaded_at" doc:"When the layers were replaced"`
}

func (s Summary) clone() Summary {
	out := s
	out.Filters = make(map[string]string, len(s.Filters))
	for k, v := range s.Filters {
		out.Filters[k] = v
	}
	out.Categories = make(map[feature.Category]int, len(s.Categories))
	for k, v := range s.Categories {
		out.Categories[k] = v
	}
	return out
}

// Options configures a Controller.
type Options struct {
	Debounce time.Duration
	Bus      *service.EventBus
	Metrics  *metrics.Metrics
	Recorder Recorder
	Logger   *zerolog.Logger
}

// Controller drives reloads against a Fetcher and swaps the results into a
// layer.Registry. The most recently requested snapshot always wins: each
// reload bumps a generation counter, cancels the previous fetch, and a
// response whose generation is stale is dropped.
type Controller struct {
	fetcher  Fetcher
	registry *layer.Registry
	opts     Options
	log      zerolog.Logger

	mu         sync.Mutex
	state      State
	gen        uint64
	cancel     context.CancelFunc
	requested  filter.Snapshot
	current    filter.Snapshot
	summary    Summary
	hasSummary bool
	lastErr    error
	scheduled  filter.Snapshot
	timer      *time.Timer
	schedSeq   uint64
}

// New creates a controller in the Idle state.
func New(fetcher Fetcher, registry *layer.Registry, opts Options) *Controller {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "controller").Logger()
	}
	return &Controller{
		fetcher:  fetcher,
		registry: registry,
		opts:     opts,
		log:      log,
	}
}

// Registry returns the layer registry the controller writes to.
func (c *Controller) Registry() *layer.Registry {
	return c.registry
}

// Reload issues exactly one fetch for snap. On success the registry is
// replaced and the new summary returned. On failure the registry is left
// untouched. A reload overtaken by a newer one returns ErrSuperseded.
func (c *Controller) Reload(ctx context.Context, snap filter.Snapshot) (Summary, error) {
	c.mu.Lock()
	c.cancelScheduleLocked()
	return c.reloadLocked(ctx, snap)
}

// reloadLocked starts a reload with c.mu held and releases it.
func (c *Controller) reloadLocked(ctx context.Context, snap filter.Snapshot) (Summary, error) {
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = Loading
	c.requested = snap
	c.mu.Unlock()
	defer cancel()

	c.publish("loading", snap.String(), "")
	start := time.Now()

	features, err := c.fetcher.Features(fetchCtx, snap)

	sum, err := c.finish(gen, snap, features, err, start)
	if err != nil {
		return Summary{}, err
	}
	if c.opts.Recorder != nil {
		if rerr := c.opts.Recorder.Record(ctx, sum); rerr != nil {
			c.log.Warn().Err(rerr).Msg("recording load history failed")
		}
	}
	return sum, nil
}

// finish applies a fetch result if it still belongs to the latest request.
func (c *Controller) finish(gen uint64, snap filter.Snapshot, features []feature.Feature, err error, start time.Time) (Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(start)
	if gen != c.gen {
		c.log.Debug().Str("filters", snap.String()).Msg("discarding superseded response")
		c.opts.Metrics.ObserveReload("superseded", elapsed)
		c.publish("superseded", snap.String(), "")
		return Summary{}, ErrSuperseded
	}
	c.cancel = nil

	if err != nil {
		c.state = Failed
		c.lastErr = err
		c.log.Error().Err(err).Str("filters", snap.String()).Msg("reload failed")
		c.opts.Metrics.ObserveReload("failed", elapsed)
		c.publish("failed", snap.String(), err.Error())
		return Summary{}, err
	}

	groups := feature.Classify(features)
	c.registry.Replace(groups)
	c.reportFallbacks()

	sum := summarize(snap, groups)
	c.state = Loaded
	c.current = snap
	c.summary = sum
	c.hasSummary = true
	c.lastErr = nil

	counts := make(map[string]int, len(sum.Categories))
	for cat, n := range sum.Categories {
		counts[string(cat)] = n
	}
	c.opts.Metrics.ObserveReload("loaded", elapsed)
	c.opts.Metrics.ObserveLayers(counts)
	c.log.Info().
		Str("filters", snap.String()).
		Int("features", sum.Total).
		Int("layers", len(sum.Categories)).
		Dur("took", elapsed).
		Msg("layers replaced")
	c.publish("loaded", snap.String(), "")
	return sum.clone(), nil
}

// reportFallbacks makes categories without a style of their own visible in
// logs and metrics instead of silently borrowing another category's style.
func (c *Controller) reportFallbacks() {
	for _, l := range c.registry.Layers() {
		if !l.StyleFallback() {
			continue
		}
		c.log.Warn().
			Str("category", string(l.Category())).
			Int("features", l.Len()).
			Msg("no style for category, using fallback")
		c.opts.Metrics.IncStyleFallback(string(l.Category()))
	}
}

// Apply builds a snapshot from raw filter fields and reloads, unless the
// snapshot equals the one already loaded and nothing newer is in flight.
func (c *Controller) Apply(ctx context.Context, fields map[string]string) (Summary, error) {
	snap := filter.Apply(fields)

	c.mu.Lock()
	c.cancelScheduleLocked()
	if c.state == Loaded && c.current.Equal(snap) {
		sum := c.summary.clone()
		c.mu.Unlock()
		c.log.Debug().Str("filters", snap.String()).Msg("filters unchanged, skipping fetch")
		return sum, nil
	}
	return c.reloadLocked(ctx, snap)
}

// Clear reloads with the empty snapshot.
func (c *Controller) Clear(ctx context.Context) (Summary, error) {
	return c.Apply(ctx, nil)
}

// Schedule debounces reloads: only the last snapshot scheduled within the
// debounce window is fetched. A direct Reload, Apply or Clear issued before
// the window ends cancels the pending one. Errors are reported through logs
// and events.
func (c *Controller) Schedule(snap filter.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelScheduleLocked()
	c.scheduled = snap
	seq := c.schedSeq
	c.timer = time.AfterFunc(c.opts.Debounce, func() { c.runScheduled(seq) })
}

// cancelScheduleLocked stops the pending timer and invalidates a timer that
// already fired but has not yet taken the lock.
func (c *Controller) cancelScheduleLocked() {
	c.schedSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) runScheduled(seq uint64) {
	c.mu.Lock()
	if seq != c.schedSeq {
		c.mu.Unlock()
		return
	}
	c.schedSeq++
	c.timer = nil
	snap := c.scheduled

	if _, err := c.reloadLocked(context.Background(), snap); err != nil && !errors.Is(err, ErrSuperseded) {
		c.log.Debug().Err(err).Msg("scheduled reload failed")
	}
}

// Close stops any pending scheduled reload and cancels an in-flight fetch.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelScheduleLocked()
	if c.cancel != nil {
		c.cancel()
	}
}

// State returns the current load state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Summary returns the last successful load, false before the first one.
func (c *Controller) Summary() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary.clone(), c.hasSummary
}

// Current returns the snapshot of the displayed data.
func (c *Controller) Current() filter.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Status is a point-in-time view of the controller.
type Status struct {
	State     string            `json:"state" enum:"idle,loading,loaded,failed" doc:"Load state"`
	Filters   map[string]string `json:"filters" doc:"Filters of the displayed data"`
	Requested map[string]string `json:"requested" doc:"Filters of the latest request"`
	Summary   *Summary          `json:"summary,omitempty" doc:"Last successful load"`
	Error     string            `json:"error,omitempty" doc:"Error of the last failed load"`
}

// Status returns the controller state for display.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:     c.state.String(),
		Filters:   c.current.Fields(),
		Requested: c.requested.Fields(),
	}
	if c.hasSummary {
		sum := c.summary.clone()
		st.Summary = &sum
	}
	if c.state == Failed && c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	return st
}

func (c *Controller) publish(action, id, msg string) {
	c.opts.Bus.Publish(service.Event{Resource: "data", Action: action, ID: id, Message: msg})
}

func summarize(snap filter.Snapshot, groups feature.Groups) Summary {
	cats := make(map[feature.Category]int, len(groups))
	for c, fs := range groups {
		if len(fs) > 0 {
			cats[c] = len(fs)
		}
	}
	return Summary{
		Filters:    snap.Fields(),
		Total:      groups.Total(),
		Categories: cats,
		LoadedAt:   time.Now().UTC(),
	}
}
