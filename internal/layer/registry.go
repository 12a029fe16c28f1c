package layer

import (
	"sort"
	"sync"

	"github.com/joeblew999/plat-fra/internal/feature"
)

// Surface is the render surface the registry attaches layers to.
// Calls arrive in order and while the registry lock is held, so an
// implementation must not call back into the registry.
type Surface interface {
	Attach(l *Layer)
	Detach(c feature.Category)
}

// Registry owns one layer per category and is the only component that
// changes which layers are attached to the surface.
type Registry struct {
	mu       sync.RWMutex
	surface  Surface
	styles   feature.StyleTable
	layers   map[feature.Category]*Layer
	attached map[feature.Category]bool
	prefs    map[feature.Category]bool
}

// NewRegistry creates an empty registry. A nil surface discards notifications.
func NewRegistry(surface Surface, styles feature.StyleTable) *Registry {
	if surface == nil {
		surface = nopSurface{}
	}
	return &Registry{
		surface:  surface,
		styles:   styles,
		layers:   make(map[feature.Category]*Layer),
		attached: make(map[feature.Category]bool),
		prefs:    make(map[feature.Category]bool),
	}
}

// SeedVisibility records initial visibility hints for categories that may
// not have loaded yet. Hints never override a choice already made.
func (r *Registry) SeedVisibility(hints map[feature.Category]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c, v := range hints {
		if _, ok := r.prefs[c]; !ok {
			r.prefs[c] = v
		}
	}
}

// Replace discards every tracked layer and builds one new layer per
// non-empty bucket. New layers are built before the surface is touched;
// stale layers are detached before any replacement is attached.
func (r *Registry) Replace(groups feature.Groups) {
	styles := r.Styles()
	next := make(map[feature.Category]*Layer, len(groups))
	for _, c := range groups.Categories() {
		if fs := groups[c]; len(fs) > 0 {
			next[c] = newLayer(c, fs, styles)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range sortedKeys(r.attached) {
		r.surface.Detach(c)
	}
	r.layers = next
	r.attached = make(map[feature.Category]bool, len(next))
	for _, c := range sortedKeys(next) {
		visible, ok := r.prefs[c]
		if !ok {
			visible = true
			r.prefs[c] = true
		}
		if visible {
			r.surface.Attach(next[c])
			r.attached[c] = true
		}
	}
}

// SetVisibility attaches or detaches a category's layer. It is idempotent,
// and a no-op for categories without a layer. It reports whether the
// category is known.
func (r *Registry) SetVisibility(c feature.Category, visible bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.layers[c]
	if !ok {
		return false
	}
	r.prefs[c] = visible
	switch {
	case visible && !r.attached[c]:
		r.surface.Attach(l)
		r.attached[c] = true
	case !visible && r.attached[c]:
		r.surface.Detach(c)
		delete(r.attached, c)
	}
	return true
}

// VisibleCategories returns the categories whose layers are attached.
func (r *Registry) VisibleCategories() map[feature.Category]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[feature.Category]struct{}, len(r.attached))
	for c := range r.attached {
		out[c] = struct{}{}
	}
	return out
}

// IsVisible reports whether a category's layer is attached.
func (r *Registry) IsVisible(c feature.Category) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attached[c]
}

// CountOf returns the number of features in a category's layer, 0 if absent.
func (r *Registry) CountOf(c feature.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, ok := r.layers[c]; ok {
		return l.Len()
	}
	return 0
}

// Get returns a category's layer.
func (r *Registry) Get(c feature.Category) (*Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layers[c]
	return l, ok
}

// Layers returns the current layers sorted by category.
func (r *Registry) Layers() []*Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Layer, 0, len(r.layers))
	for _, c := range sortedKeys(r.layers) {
		out = append(out, r.layers[c])
	}
	return out
}

// Styles returns the style table used for new layers.
func (r *Registry) Styles() feature.StyleTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.styles
}

// SetStyles swaps the style table and restyles the current layers. Attached
// layers are detached and re-attached so the surface picks up the change.
func (r *Registry) SetStyles(styles feature.StyleTable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.styles = styles
	for _, c := range sortedKeys(r.layers) {
		l := r.layers[c].restyle(styles)
		r.layers[c] = l
		if r.attached[c] {
			r.surface.Detach(c)
			r.surface.Attach(l)
		}
	}
}

func sortedKeys[V any](m map[feature.Category]V) []feature.Category {
	keys := make([]feature.Category, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

type nopSurface struct{}

func (nopSurface) Attach(*Layer) {}
func (nopSurface) Detach(feature.Category) {}
