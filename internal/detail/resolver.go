// Package detail resolves per-entity detail records on demand and caches
// them for the life of the resolver.
package detail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/plat-fra/internal/metrics"
)

// Fetcher returns the raw JSON detail record for an id.
type Fetcher interface {
	Detail(ctx context.Context, id string) (json.RawMessage, error)
}

// Record is an immutable detail record. It holds the exact bytes the
// server returned; accessors hand out copies.
type Record struct {
	id  string
	raw []byte
}

// ID returns the record's entity id.
func (r Record) ID() string { return r.id }

// Raw returns a copy of the record's JSON.
func (r Record) Raw() json.RawMessage {
	out := make([]byte, len(r.raw))
	copy(out, r.raw)
	return out
}

// Fields decodes the record into a fresh map.
func (r Record) Fields() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(r.raw, &m); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", r.id, err)
	}
	return m, nil
}

// MarshalJSON emits the record verbatim.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw(), nil
}

// Resolver caches detail records by id. Concurrent lookups of the same id
// share one fetch; failures are never cached.
type Resolver struct {
	fetcher Fetcher
	metrics *metrics.Metrics
	log     zerolog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]Record
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(fetcher Fetcher, m *metrics.Metrics, logger *zerolog.Logger) *Resolver {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "detail").Logger()
	}
	return &Resolver{
		fetcher: fetcher,
		metrics: m,
		log:     log,
		cache:   make(map[string]Record),
	}
}

// Resolve returns the cached record for id, fetching it on a miss. The
// shared fetch is detached from any single caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (r *Resolver) Resolve(ctx context.Context, id string) (Record, error) {
	if rec, ok := r.cached(id); ok {
		r.metrics.IncDetailLookup("hit")
		return rec, nil
	}

	ch := r.group.DoChan(id, func() (any, error) {
		if rec, ok := r.cached(id); ok {
			return rec, nil
		}
		raw, err := r.fetcher.Detail(context.WithoutCancel(ctx), id)
		if err != nil {
			return Record{}, err
		}
		return r.store(id, raw), nil
	})

	select {
	case <-ctx.Done():
		r.metrics.IncDetailLookup("cancelled")
		return Record{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.metrics.IncDetailLookup("error")
			r.log.Warn().Err(res.Err).Str("id", id).Msg("detail lookup failed")
			return Record{}, res.Err
		}
		r.metrics.IncDetailLookup("fetched")
		r.log.Debug().Str("id", id).Bool("shared", res.Shared).Msg("detail fetched")
		return res.Val.(Record), nil
	}
}

// Cached reports whether id is in the cache.
func (r *Resolver) Cached(id string) bool {
	_, ok := r.cached(id)
	return ok
}

// Len returns the number of cached records.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) cached(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.cache[id]
	return rec, ok
}

// store caches a fetched record. The first success wins; a later fetch for
// the same id returns the record already stored.
func (r *Resolver) store(id string, raw json.RawMessage) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.cache[id]; ok {
		return rec
	}
	owned := make([]byte, len(raw))
	copy(owned, raw)
	rec := Record{id: id, raw: owned}
	r.cache[id] = rec
	return rec
}
