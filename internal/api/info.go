package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Upstream string   `json:"upstream" doc:"Upstream data server base URL"`
	History  bool     `json:"history" doc:"Whether load history is recorded"`
	Details  int      `json:"details_cached" doc:"Number of cached detail records"`
	Features []string `json:"features" doc:"Available features"`
}

// RegisterInfo registers the service info route.
func (h *APIHandler) RegisterInfo(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-fra",
		Version:  "0.1.0",
		Upstream: h.svc.Upstream.BaseURL(),
		History:  h.svc.History != nil,
		Details:  h.svc.Details.Len(),
		Features: []string{"layers", "filters", "styles", "details", "events", "history"},
	}}, nil
}
