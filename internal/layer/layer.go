// Package layer owns the renderable per-category layers and their visibility.
package layer

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-fra/internal/feature"
)

// Layer wraps the features of one category. Membership is fixed at
// construction; the registry replaces layers wholesale on each load.
type Layer struct {
	category feature.Category
	features []feature.Feature
	style    feature.Style
	matched  bool
	bound    orb.Bound
	hasBound bool
}

func newLayer(c feature.Category, fs []feature.Feature, styles feature.StyleTable) *Layer {
	owned := make([]feature.Feature, len(fs))
	copy(owned, fs)
	style, matched := styles.Lookup(c)
	b, ok := feature.Bound(owned)
	return &Layer{
		category: c,
		features: owned,
		style:    style,
		matched:  matched,
		bound:    b,
		hasBound: ok,
	}
}

// restyle returns a copy of the layer styled from styles. The feature slice
// is shared; it is never written after construction.
func (l *Layer) restyle(styles feature.StyleTable) *Layer {
	out := *l
	out.style, out.matched = styles.Lookup(l.category)
	return &out
}

// Category returns the layer's category.
func (l *Layer) Category() feature.Category { return l.category }

// Len returns the number of features held by the layer.
func (l *Layer) Len() int { return len(l.features) }

// Style returns the resolved display style.
func (l *Layer) Style() feature.Style { return l.style }

// StyleFallback reports whether the style came from the table's fallback.
func (l *Layer) StyleFallback() bool { return !l.matched }

// Bound returns the bounding box of the layer's geometries.
func (l *Layer) Bound() (orb.Bound, bool) { return l.bound, l.hasBound }

// Features returns a copy of the layer's features.
func (l *Layer) Features() []feature.Feature {
	out := make([]feature.Feature, len(l.features))
	copy(out, l.features)
	return out
}

// FeatureCollection encodes the layer as a GeoJSON feature collection.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.features {
		fc.Append(f.GeoJSON())
	}
	return fc
}
