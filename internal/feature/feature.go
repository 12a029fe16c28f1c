// Package feature holds the feature model shared by the layer engine:
// categorised GeoJSON features, their grouping, and category styling.
package feature

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Category is the classification label used to bucket features into a layer.
// The vocabulary is open: values the style table does not know are kept as-is.
type Category string

// Uncategorized is the bucket key for features that carry no category property.
const Uncategorized Category = ""

// UncategorizedToken names the Uncategorized bucket where an empty key
// cannot be used, such as a URL path segment.
const UncategorizedToken = "_uncategorized"

// Token returns the category as a non-empty key.
func (c Category) Token() string {
	if c == Uncategorized {
		return UncategorizedToken
	}
	return string(c)
}

// ParseToken is the inverse of Category.Token.
func ParseToken(s string) Category {
	if s == UncategorizedToken {
		return Uncategorized
	}
	return Category(s)
}

// Feature is a geometry plus its scalar properties, with the category and
// identifier already extracted at the fetch boundary.
type Feature struct {
	ID         string
	Category   Category
	Geometry   orb.Geometry
	Properties geojson.Properties
}

// GeoJSON converts the feature back into an orb GeoJSON feature.
// Properties are copied so callers cannot mutate the layer's view.
func (f Feature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry)
	if f.ID != "" {
		gf.ID = f.ID
	}
	for k, v := range f.Properties {
		gf.Properties[k] = v
	}
	return gf
}

// Groups maps a category to its features in input order.
type Groups map[Category][]Feature

// Categories returns the group keys in sorted order.
func (g Groups) Categories() []Category {
	cats := make([]Category, 0, len(g))
	for c := range g {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Total returns the number of features across all groups.
func (g Groups) Total() int {
	n := 0
	for _, fs := range g {
		n += len(fs)
	}
	return n
}

// Classify partitions features by category. Order within each bucket follows
// the input; features with an unknown or missing category land in a bucket
// keyed by that literal value.
func Classify(features []Feature) Groups {
	groups := make(Groups)
	for _, f := range features {
		groups[f.Category] = append(groups[f.Category], f)
	}
	return groups
}

// Bound returns the union of the geometry bounds, and false when no feature
// carries a geometry.
func Bound(features []Feature) (orb.Bound, bool) {
	var (
		b  orb.Bound
		ok bool
	)
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		if !ok {
			b, ok = f.Geometry.Bound(), true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, ok
}
