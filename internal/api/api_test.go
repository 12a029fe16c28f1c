package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/plat-fra/internal/controller"
	"github.com/joeblew999/plat-fra/internal/detail"
	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/layer"
	"github.com/joeblew999/plat-fra/internal/service"
	"github.com/joeblew999/plat-fra/internal/upstream"
)

const fiveFeatures = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[80.1,21.1]},"properties":{"class":"forest_dense"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[80.2,21.2]},"properties":{"class":"forest_dense"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[80.3,21.3]},"properties":{"class":"forest_dense"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[80.4,21.4]},"properties":{"class":"urban"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[80.5,21.5]},"properties":{"class":"urban"}}
]}`

type fakeUpstream struct {
	detailCalls int32
	exportQuery atomic.Value
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/data":
		switch r.URL.Query().Get("state") {
		case "Telangana":
			w.Write([]byte(`{"error":"no data"}`))
			return
		case "Jharkhand":
			w.Write([]byte(`{"features":[
			 {"type":"Feature","geometry":{"type":"Point","coordinates":[85.1,23.3]},"properties":{"class":"urban"}},
			 {"type":"Feature","geometry":{"type":"Point","coordinates":[85.2,23.4]},"properties":{"village":"Khunti"}}
			]}`))
			return
		}
		w.Write([]byte(fiveFeatures))
	case "/api/claim/TS-001":
		atomic.AddInt32(&f.detailCalls, 1)
		w.Write([]byte(`{"claim_id":"TS-001","village":"Utnoor"}`))
	case "/api/export":
		f.exportQuery.Store(r.URL.RawQuery)
		w.Write([]byte(`{"rows":[]}`))
	case "/api/statistics":
		w.Write([]byte(`{"total_claims":12}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestAPI(t *testing.T) (humatest.TestAPI, *Services, *fakeUpstream) {
	t.Helper()
	fake := &fakeUpstream{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	styles, err := service.NewStyleService("")
	if err != nil {
		t.Fatal(err)
	}
	bus := service.NewEventBus()
	reg := layer.NewRegistry(service.NewBusSurface(bus), styles.Table())
	client := upstream.New(upstream.Config{BaseURL: srv.URL})
	svc := &Services{
		Controller: controller.New(client, reg, controller.Options{Bus: bus}),
		Registry:   reg,
		Styles:     styles,
		Details:    detail.NewResolver(client, nil, nil),
		Upstream:   client,
		Bus:        bus,
	}

	_, api := humatest.New(t)
	RegisterRoutes(api, svc)
	return api, svc, fake
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", resp.Body.String(), err)
	}
	return v
}

func TestReloadBuildsLayers(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Post("/api/v1/reload")
	if resp.Code != http.StatusOK {
		t.Fatalf("reload status=%d body=%s", resp.Code, resp.Body.String())
	}
	sum := decode[controller.Summary](t, resp)
	if sum.Total != 5 {
		t.Fatalf("total=%d, want 5", sum.Total)
	}

	layers := decode[[]LayerBody](t, api.Get("/api/v1/layers"))
	if len(layers) != 2 {
		t.Fatalf("layers=%d, want 2", len(layers))
	}
	if layers[0].Category != "forest_dense" || layers[0].Count != 3 || !layers[0].Visible {
		t.Fatalf("layer 0 = %+v", layers[0])
	}
	if layers[1].Category != "urban" || layers[1].Count != 2 {
		t.Fatalf("layer 1 = %+v", layers[1])
	}
	if len(layers[0].Bounds) != 4 || layers[0].Bounds[0] != 80.1 || layers[0].Bounds[3] != 21.3 {
		t.Fatalf("bounds=%v", layers[0].Bounds)
	}
}

func TestFilterServerErrorKeepsLayers(t *testing.T) {
	api, svc, _ := newTestAPI(t)

	if resp := api.Post("/api/v1/reload"); resp.Code != http.StatusOK {
		t.Fatalf("reload status=%d", resp.Code)
	}

	resp := api.Post("/api/v1/filters", map[string]any{
		"fields": map[string]string{"state": "Telangana"},
	})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502: %s", resp.Code, resp.Body.String())
	}

	if svc.Registry.CountOf("forest_dense") != 3 || svc.Registry.CountOf("urban") != 2 {
		t.Fatal("layers changed after a failed filter")
	}
	st := decode[controller.Status](t, api.Get("/api/v1/state"))
	if st.State != "failed" || st.Error == "" {
		t.Fatalf("state=%+v", st)
	}
	if st.Summary == nil || st.Summary.Total != 5 {
		t.Fatalf("summary=%+v, want previous load", st.Summary)
	}
}

func TestVisibilityToggle(t *testing.T) {
	api, svc, _ := newTestAPI(t)
	api.Post("/api/v1/reload")

	got := decode[VisibilityBody](t, api.Put("/api/v1/layers/urban/visibility", map[string]any{"visible": false}))
	if !got.Known || got.Visible {
		t.Fatalf("urban=%+v, want known and hidden", got)
	}
	if svc.Registry.IsVisible("urban") {
		t.Fatal("urban still visible")
	}

	got = decode[VisibilityBody](t, api.Put("/api/v1/layers/water/visibility", map[string]any{"visible": false}))
	if got.Known {
		t.Fatalf("water=%+v, want unknown", got)
	}
}

func TestLayerFeaturesNotFound(t *testing.T) {
	api, _, _ := newTestAPI(t)
	api.Post("/api/v1/reload")

	if resp := api.Get("/api/v1/layers/water/features"); resp.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", resp.Code)
	}
	fc := decode[map[string]any](t, api.Get("/api/v1/layers/urban/features"))
	if fs, _ := fc["features"].([]any); len(fs) != 2 {
		t.Fatalf("features=%v", fc["features"])
	}
}

func TestStyleLookup(t *testing.T) {
	api, _, _ := newTestAPI(t)

	got := decode[StyleBody](t, api.Get("/api/v1/styles/Forest-Dense"))
	if !got.Matched || got.Style.Name != "Dense forest" {
		t.Fatalf("style=%+v", got)
	}

	got = decode[StyleBody](t, api.Get("/api/v1/styles/mystery"))
	if got.Matched || got.Style.Name != "mystery" {
		t.Fatalf("style=%+v, want fallback", got)
	}

	resp := api.Put("/api/v1/styles/mystery", map[string]any{
		"name": "Mystery", "color": "#000", "fillColor": "#111",
		"opacity": 1, "fillOpacity": 0.5, "weight": 2,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", resp.Code, resp.Body.String())
	}
	got = decode[StyleBody](t, api.Get("/api/v1/styles/mystery"))
	if !got.Matched || got.Style.Color != "#000" {
		t.Fatalf("style=%+v, want stored style", got)
	}
}

func TestDetailIsFetchedOnce(t *testing.T) {
	api, _, fake := newTestAPI(t)

	first := api.Get("/api/v1/details/TS-001")
	second := api.Get("/api/v1/details/TS-001")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status=%d/%d", first.Code, second.Code)
	}
	if n := atomic.LoadInt32(&fake.detailCalls); n != 1 {
		t.Fatalf("upstream calls=%d, want 1", n)
	}
	rec := decode[map[string]any](t, second)
	if rec["village"] != "Utnoor" {
		t.Fatalf("record=%v", rec)
	}

	if resp := api.Get("/api/v1/details/missing"); resp.Code != http.StatusBadGateway {
		t.Fatalf("missing status=%d, want 502", resp.Code)
	}
}

func TestExportForwardsDisplayedFilters(t *testing.T) {
	api, _, fake := newTestAPI(t)

	resp := api.Post("/api/v1/filters", map[string]any{
		"fields": map[string]string{"state": "Odisha", "district": ""},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("filters status=%d body=%s", resp.Code, resp.Body.String())
	}
	if resp := api.Get("/api/v1/export"); resp.Code != http.StatusOK {
		t.Fatalf("export status=%d", resp.Code)
	}
	if q, _ := fake.exportQuery.Load().(string); q != "state=Odisha" {
		t.Fatalf("export query=%q, want state=Odisha", q)
	}
}

func TestUpstreamPassThrough(t *testing.T) {
	api, _, _ := newTestAPI(t)

	body := decode[map[string]any](t, api.Get("/api/v1/upstream/statistics"))
	if body["total_claims"] != float64(12) {
		t.Fatalf("body=%v", body)
	}
	if resp := api.Get("/api/v1/upstream/unknown"); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422 for unknown endpoint", resp.Code)
	}
}

func TestHistoryWithoutDatabase(t *testing.T) {
	api, _, _ := newTestAPI(t)

	page := decode[map[string]any](t, api.Get("/api/v1/history"))
	if page["total"] != float64(0) {
		t.Fatalf("page=%v", page)
	}
}

func TestUncategorizedLayerIsAddressable(t *testing.T) {
	api, svc, _ := newTestAPI(t)

	resp := api.Post("/api/v1/filters", map[string]any{
		"fields": map[string]string{"state": "Jharkhand"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("filters status=%d body=%s", resp.Code, resp.Body.String())
	}

	layers := decode[[]LayerBody](t, api.Get("/api/v1/layers"))
	if len(layers) != 2 || layers[0].Category != "_uncategorized" || layers[0].Count != 1 {
		t.Fatalf("layers=%+v", layers)
	}

	got := decode[VisibilityBody](t, api.Put("/api/v1/layers/_uncategorized/visibility", map[string]any{"visible": false}))
	if !got.Known || got.Visible {
		t.Fatalf("uncategorized=%+v, want known and hidden", got)
	}
	if svc.Registry.IsVisible(feature.Uncategorized) {
		t.Fatal("uncategorized layer still attached")
	}

	fc := decode[map[string]any](t, api.Get("/api/v1/layers/_uncategorized/features"))
	if fs, _ := fc["features"].([]any); len(fs) != 1 {
		t.Fatalf("features=%v", fc["features"])
	}
}
