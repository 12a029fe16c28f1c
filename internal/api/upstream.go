package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-fra/internal/history"
	"github.com/joeblew999/plat-fra/internal/humastar"
)

type UpstreamInput struct {
	Name string `path:"name" enum:"statistics,fra-progress,performance,analytics,filter-options,layers,status" doc:"Upstream endpoint to pass through"`
}

type DetailInput struct {
	ID string `path:"id" doc:"Entity identifier" example:"TS-001"`
}

type HistoryInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Number of loads to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"20" doc:"Page size"`
}

type HistoryOutput struct {
	Link string `header:"Link" doc:"RFC 8288 pagination links"`
	Body humastar.PageBody[history.Entry]
}

// RegisterDetails registers detail lookup routes.
func (h *APIHandler) RegisterDetails(api huma.API) {
	huma.Get(api, "/api/v1/details/{id}", h.GetDetail, huma.OperationTags("details"))
}

// RegisterUpstream registers pass-through and export routes.
func (h *APIHandler) RegisterUpstream(api huma.API) {
	huma.Get(api, "/api/v1/upstream/{name}", h.GetUpstream, huma.OperationTags("upstream"))
	huma.Get(api, "/api/v1/export", h.Export, huma.OperationTags("upstream"))
}

// RegisterHistory registers load history routes.
func (h *APIHandler) RegisterHistory(api huma.API) {
	huma.Get(api, "/api/v1/history", h.GetHistory, huma.OperationTags("history"))
}

func (h *APIHandler) GetDetail(ctx context.Context, input *DetailInput) (*RawOutput, error) {
	rec, err := h.svc.Details.Resolve(ctx, input.ID)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &RawOutput{Body: rec}, nil
}

func (h *APIHandler) GetUpstream(ctx context.Context, input *UpstreamInput) (*RawOutput, error) {
	body, err := h.svc.Upstream.Aggregate(ctx, input.Name)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &RawOutput{Body: body}, nil
}

// Export forwards the snapshot of the displayed data unmodified.
func (h *APIHandler) Export(ctx context.Context, input *struct{}) (*RawOutput, error) {
	body, err := h.svc.Upstream.Export(ctx, h.svc.Controller.Current())
	if err != nil {
		return nil, upstreamError(err)
	}
	return &RawOutput{Body: body}, nil
}

func (h *APIHandler) GetHistory(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	page := humastar.PageBody[history.Entry]{Offset: input.Offset, Limit: input.Limit, Data: []history.Entry{}}
	if h.svc.History == nil {
		return &HistoryOutput{Body: page}, nil
	}

	total, err := h.svc.History.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count history", err)
	}
	entries, err := h.svc.History.Recent(ctx, input.Offset, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read history", err)
	}
	page.Total = total
	page.Data = entries

	out := &HistoryOutput{Body: page}
	for i, l := range page.PaginationLinks("/api/v1/history") {
		if i > 0 {
			out.Link += ", "
		}
		out.Link += l
	}
	return out, nil
}
