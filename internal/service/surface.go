package service

import (
	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/layer"
)

// BusSurface is a layer.Surface that turns attach/detach calls into
// visibility-change notifications for the map widget.
type BusSurface struct {
	bus *EventBus
}

// NewBusSurface creates a surface publishing on bus.
func NewBusSurface(bus *EventBus) *BusSurface {
	return &BusSurface{bus: bus}
}

// Attach publishes a layers/attached event.
func (s *BusSurface) Attach(l *layer.Layer) {
	s.bus.Publish(Event{Resource: "layers", Action: "attached", ID: string(l.Category())})
}

// Detach publishes a layers/detached event.
func (s *BusSurface) Detach(c feature.Category) {
	s.bus.Publish(Event{Resource: "layers", Action: "detached", ID: string(c)})
}
