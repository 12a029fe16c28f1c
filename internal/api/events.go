package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-fra/internal/humastar"
	"github.com/joeblew999/plat-fra/internal/service"
)

// RegisterEvents registers the engine event stream.
func (h *APIHandler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events, huma.OperationTags("events"))
}

// Events streams status and layer changes as Datastar signal patches plus an
// "engine-event" custom event per bus event.
func (h *APIHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.svc.Bus.Subscribe()
		defer h.svc.Bus.Unsubscribe(ch)

		sse.Signals(h.signals())
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				sse.Signals(h.signals())
				sse.Event("engine-event", eventDetail(ev))
			}
		}
	}), nil
}

func (h *APIHandler) signals() map[string]any {
	st := h.svc.Controller.Status()
	visible := make(map[string]bool)
	for _, l := range h.svc.Registry.Layers() {
		visible[l.Category().Token()] = h.svc.Registry.IsVisible(l.Category())
	}
	sig := map[string]any{
		"state":   st.State,
		"filters": st.Filters,
		"visible": visible,
		"error":   st.Error,
	}
	if st.Summary != nil {
		sig["total"] = st.Summary.Total
		sig["counts"] = st.Summary.Categories
	}
	return sig
}

func eventDetail(ev service.Event) map[string]any {
	return map[string]any{
		"resource": ev.Resource,
		"action":   ev.Action,
		"id":       ev.ID,
		"message":  ev.Message,
	}
}
