package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/filter"
)

// featurePayload is the GeoJSON-like collection returned by the data
// endpoint. Features is a pointer so a missing key can be told apart from
// an empty collection.
type featurePayload struct {
	Features *[]*rawFeature `json:"features"`
}

// rawFeature accepts features without a "type" member. Only geometry and
// properties are read; the geometry itself must be valid GeoJSON.
type rawFeature struct {
	ID         any                `json:"id"`
	Geometry   *geojson.Geometry  `json:"geometry"`
	Properties geojson.Properties `json:"properties"`
}

// Features fetches the collection matching a snapshot and extracts each
// feature's category and identifier.
func (c *Client) Features(ctx context.Context, snap filter.Snapshot) ([]feature.Feature, error) {
	body, err := c.get(ctx, c.cfg.DataPath, snap.Query())
	if err != nil {
		return nil, err
	}
	u := c.cfg.BaseURL + c.cfg.DataPath
	return DecodeFeatures(u, body, c.cfg.CategoryKeys, c.cfg.IDKeys)
}

// DecodeFeatures parses a feature collection body. source is used only in
// error messages.
func DecodeFeatures(source string, body []byte, categoryKeys, idKeys []string) ([]feature.Feature, error) {
	var p featurePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &MalformedPayloadError{URL: source, Reason: "decoding features", Err: err}
	}
	if p.Features == nil {
		return nil, &MalformedPayloadError{URL: source, Reason: "missing features sequence"}
	}

	out := make([]feature.Feature, 0, len(*p.Features))
	for i, gf := range *p.Features {
		if gf == nil {
			return nil, &MalformedPayloadError{URL: source, Reason: fmt.Sprintf("feature %d is null", i)}
		}
		f := feature.Feature{Properties: gf.Properties.Clone()}
		if gf.Geometry != nil {
			f.Geometry = gf.Geometry.Geometry()
		}
		if v, ok := lookup(gf.Properties, categoryKeys); ok {
			f.Category = feature.Category(v)
		}
		if v, ok := lookup(gf.Properties, idKeys); ok {
			f.ID = v
		} else if gf.ID != nil {
			f.ID = scalar(gf.ID)
		}
		out = append(out, f)
	}
	return out, nil
}

func lookup(props geojson.Properties, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := props[k]; ok && v != nil {
			return scalar(v), true
		}
	}
	return "", false
}

// scalar renders a property value as a string key. Integral JSON numbers
// drop the trailing ".0" so claim 42 stays "42".
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
