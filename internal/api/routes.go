// Package api defines the Huma API routes and handlers. Each route is an
// explicit command against the layer engine, so a hosting UI never touches
// engine state directly.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-fra/internal/controller"
	"github.com/joeblew999/plat-fra/internal/detail"
	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/filter"
	"github.com/joeblew999/plat-fra/internal/history"
	"github.com/joeblew999/plat-fra/internal/humastar"
	"github.com/joeblew999/plat-fra/internal/layer"
	"github.com/joeblew999/plat-fra/internal/service"
	"github.com/joeblew999/plat-fra/internal/upstream"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Controller *controller.Controller
	Registry   *layer.Registry
	Styles     *service.StyleService
	Details    *detail.Resolver
	Upstream   *upstream.Client
	History    *history.Store // nil when no database is configured
	Bus        *service.EventBus
}

// RegisterRoutes registers every Register* method of the API handler.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type CategoryInput struct {
	Category string `path:"category" doc:"Layer category; _uncategorized for features without one" example:"forest_dense"`
}

type FiltersInput struct {
	Debounce bool `query:"debounce" doc:"Schedule a debounced reload instead of reloading now"`
	Body     struct {
		Fields map[string]string `json:"fields" doc:"Filter field values; blank values are dropped"`
	}
}

type StatusOutput struct {
	Body controller.Status
}

type SummaryOutput struct {
	Body controller.Summary
}

type LayerBody struct {
	Category      string        `json:"category" doc:"Category key"`
	Count         int           `json:"count" doc:"Number of features in the layer"`
	Visible       bool          `json:"visible" doc:"Whether the layer is attached to the map"`
	Style         feature.Style `json:"style" doc:"Resolved display style"`
	StyleFallback bool          `json:"styleFallback" doc:"True when the category has no style of its own"`
	Bounds        []float64     `json:"bounds,omitempty" doc:"Bounding box [minLon, minLat, maxLon, maxLat]"`
}

type LayersOutput struct {
	Body []LayerBody
}

type VisibilityInput struct {
	CategoryInput
	Body struct {
		Visible bool `json:"visible" doc:"Attach (true) or detach (false) the layer"`
	}
}

type VisibilityBody struct {
	Category string `json:"category" doc:"Category key"`
	Known    bool   `json:"known" doc:"False when no layer exists for the category; the toggle was ignored"`
	Visible  bool   `json:"visible" doc:"Visibility after the toggle"`
}

type StyleBody struct {
	Category string        `json:"category" doc:"Category key"`
	Matched  bool          `json:"matched" doc:"False when the fallback style was returned"`
	Style    feature.Style `json:"style" doc:"Display style"`
}

type RawOutput struct {
	Body any
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	humastar.Handler
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterState registers controller state and filter routes.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("data"))
	huma.Post(api, "/api/v1/filters", h.ApplyFilters, huma.OperationTags("data"))
	huma.Delete(api, "/api/v1/filters", h.ClearFilters, huma.OperationTags("data"))
	huma.Post(api, "/api/v1/reload", h.Reload, huma.OperationTags("data"))
}

// RegisterLayers registers layer listing and visibility routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{category}/visibility", h.PutVisibility, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{category}/features", h.GetLayerFeatures, huma.OperationTags("layers"))
}

// RegisterStyles registers category style routes.
func (h *APIHandler) RegisterStyles(api huma.API) {
	huma.Get(api, "/api/v1/styles/{category}", h.GetStyle, huma.OperationTags("styles"))
	huma.Put(api, "/api/v1/styles/{category}", h.PutStyle, huma.OperationTags("styles"))
	huma.Delete(api, "/api/v1/styles/{category}", h.DeleteStyle, huma.OperationTags("styles"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*StatusOutput, error) {
	return &StatusOutput{Body: h.svc.Controller.Status()}, nil
}

func (h *APIHandler) ApplyFilters(ctx context.Context, input *FiltersInput) (*StatusOutput, error) {
	if input.Debounce {
		h.svc.Controller.Schedule(filter.Apply(input.Body.Fields))
		return &StatusOutput{Body: h.svc.Controller.Status()}, nil
	}
	if _, err := h.svc.Controller.Apply(ctx, input.Body.Fields); err != nil {
		return nil, upstreamError(err)
	}
	return &StatusOutput{Body: h.svc.Controller.Status()}, nil
}

func (h *APIHandler) ClearFilters(ctx context.Context, input *struct{}) (*StatusOutput, error) {
	if _, err := h.svc.Controller.Clear(ctx); err != nil {
		return nil, upstreamError(err)
	}
	return &StatusOutput{Body: h.svc.Controller.Status()}, nil
}

func (h *APIHandler) Reload(ctx context.Context, input *struct{}) (*SummaryOutput, error) {
	sum, err := h.svc.Controller.Reload(ctx, h.svc.Controller.Current())
	if err != nil {
		return nil, upstreamError(err)
	}
	return &SummaryOutput{Body: sum}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	layers := h.svc.Registry.Layers()
	out := make([]LayerBody, 0, len(layers))
	for _, l := range layers {
		out = append(out, layerBody(h.svc.Registry, l))
	}
	return &LayersOutput{Body: out}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *VisibilityInput) (*struct{ Body VisibilityBody }, error) {
	c := feature.ParseToken(input.Category)
	known := h.svc.Registry.SetVisibility(c, input.Body.Visible)
	return &struct{ Body VisibilityBody }{Body: VisibilityBody{
		Category: input.Category,
		Known:    known,
		Visible:  h.svc.Registry.IsVisible(c),
	}}, nil
}

func (h *APIHandler) GetLayerFeatures(ctx context.Context, input *CategoryInput) (*RawOutput, error) {
	l, ok := h.svc.Registry.Get(feature.ParseToken(input.Category))
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &RawOutput{Body: l.FeatureCollection()}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *CategoryInput) (*struct{ Body StyleBody }, error) {
	style, matched := h.svc.Styles.Lookup(feature.ParseToken(input.Category))
	return &struct{ Body StyleBody }{Body: StyleBody{
		Category: input.Category, Matched: matched, Style: style,
	}}, nil
}

func (h *APIHandler) PutStyle(ctx context.Context, input *struct {
	CategoryInput
	Body feature.Style
}) (*struct{ Body StyleBody }, error) {
	if err := h.svc.Styles.Put(feature.ParseToken(input.Category), input.Body); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	h.svc.Registry.SetStyles(h.svc.Styles.Table())
	return &struct{ Body StyleBody }{Body: StyleBody{
		Category: input.Category, Matched: true, Style: input.Body,
	}}, nil
}

func (h *APIHandler) DeleteStyle(ctx context.Context, input *CategoryInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Styles.Delete(feature.ParseToken(input.Category)); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	h.svc.Registry.SetStyles(h.svc.Styles.Table())
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Style deleted"}}, nil
}

func layerBody(reg *layer.Registry, l *layer.Layer) LayerBody {
	body := LayerBody{
		Category:      l.Category().Token(),
		Count:         l.Len(),
		Visible:       reg.IsVisible(l.Category()),
		Style:         l.Style(),
		StyleFallback: l.StyleFallback(),
	}
	if b, ok := l.Bound(); ok {
		body.Bounds = []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}
	return body
}

// upstreamError maps fetch-layer errors onto HTTP errors.
func upstreamError(err error) error {
	var (
		se *upstream.ServerError
		me *upstream.MalformedPayloadError
		ne *upstream.NetworkError
	)
	switch {
	case errors.Is(err, controller.ErrSuperseded):
		return huma.Error409Conflict("superseded by a newer reload")
	case errors.As(err, &se):
		return huma.Error502BadGateway(se.Error())
	case errors.As(err, &me):
		return huma.Error502BadGateway(me.Error())
	case errors.As(err, &ne):
		return huma.Error503ServiceUnavailable(ne.Error())
	default:
		return huma.Error500InternalServerError("upstream request failed", err)
	}
}
