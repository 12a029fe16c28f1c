package feature

import "strings"

// Style is the display style of a category layer.
type Style struct {
	Name        string  `json:"name" yaml:"name" doc:"Display name" example:"Dense forest"`
	Color       string  `json:"color" yaml:"color" doc:"Stroke color (CSS)" example:"#1b5e20"`
	FillColor   string  `json:"fillColor" yaml:"fillColor" doc:"Fill color (CSS)" example:"#2e7d32"`
	Opacity     float64 `json:"opacity" yaml:"opacity" minimum:"0" maximum:"1" doc:"Stroke opacity (0-1)" example:"0.8"`
	FillOpacity float64 `json:"fillOpacity" yaml:"fillOpacity" minimum:"0" maximum:"1" doc:"Fill opacity (0-1)" example:"0.6"`
	Weight      float64 `json:"weight" yaml:"weight" minimum:"0" doc:"Stroke width" example:"1"`
}

// StyleTable resolves category styles with an explicit fallback.
type StyleTable struct {
	Styles   map[Category]Style `json:"styles" yaml:"styles"`
	Fallback Style              `json:"fallback" yaml:"fallback"`
}

// Lookup returns the style for a category. The exact key is tried first,
// then the normalised form. matched is false when the fallback was used.
func (t StyleTable) Lookup(c Category) (style Style, matched bool) {
	if s, ok := t.Styles[c]; ok {
		return s, true
	}
	if s, ok := t.Styles[Normalize(c)]; ok {
		return s, true
	}
	for k, s := range t.Styles {
		if Normalize(k) == Normalize(c) {
			return s, true
		}
	}
	fb := t.Fallback
	if fb.Name == "" {
		fb.Name = string(c)
	}
	return fb, false
}

// Normalize lowercases a category and folds spaces and dashes to underscores,
// so "Forest Dense" and "forest-dense" resolve to forest_dense.
func Normalize(c Category) Category {
	s := strings.ToLower(strings.TrimSpace(string(c)))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return Category(s)
}

// DefaultStyles covers the land-use classes and FRA claim types the
// upstream pipeline emits. Unknown categories fall back to a neutral grey.
func DefaultStyles() StyleTable {
	return StyleTable{
		Styles: map[Category]Style{
			"forest_dense":  {Name: "Dense forest", Color: "#1b5e20", FillColor: "#2e7d32", Opacity: 0.8, FillOpacity: 0.6, Weight: 1},
			"forest_open":   {Name: "Open forest", Color: "#388e3c", FillColor: "#66bb6a", Opacity: 0.8, FillOpacity: 0.5, Weight: 1},
			"agriculture":   {Name: "Agriculture", Color: "#f9a825", FillColor: "#fdd835", Opacity: 0.8, FillOpacity: 0.5, Weight: 1},
			"urban":         {Name: "Urban", Color: "#b71c1c", FillColor: "#e53935", Opacity: 0.8, FillOpacity: 0.5, Weight: 1},
			"water":         {Name: "Water", Color: "#0d47a1", FillColor: "#1e88e5", Opacity: 0.8, FillOpacity: 0.6, Weight: 1},
			"barren":        {Name: "Barren land", Color: "#6d4c41", FillColor: "#a1887f", Opacity: 0.8, FillOpacity: 0.4, Weight: 1},
			"grassland":     {Name: "Grassland", Color: "#827717", FillColor: "#c0ca33", Opacity: 0.8, FillOpacity: 0.4, Weight: 1},
			"IFR":           {Name: "Individual Forest Rights", Color: "#e65100", FillColor: "#fb8c00", Opacity: 0.9, FillOpacity: 0.5, Weight: 2},
			"CFR":           {Name: "Community Forest Resource", Color: "#1a237e", FillColor: "#3949ab", Opacity: 0.9, FillOpacity: 0.5, Weight: 2},
			"CR":            {Name: "Community Rights", Color: "#4a148c", FillColor: "#8e24aa", Opacity: 0.9, FillOpacity: 0.5, Weight: 2},
		},
		Fallback: Style{Color: "#616161", FillColor: "#9e9e9e", Opacity: 0.7, FillOpacity: 0.3, Weight: 1},
	}
}
