package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/layer"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	a, b := bus.Subscribe(), bus.Subscribe()
	defer bus.Unsubscribe(a)

	bus.Publish(Event{Resource: "data", Action: "loaded"})

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Action != "loaded" {
				t.Fatalf("action=%q, want loaded", ev.Action)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	bus.Unsubscribe(b)
	bus.Unsubscribe(b)
	if _, ok := <-b; ok {
		t.Fatal("unsubscribed channel must be closed")
	}
}

func TestBusSurfaceNotifiesVisibilityChanges(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	reg := layer.NewRegistry(NewBusSurface(bus), feature.DefaultStyles())
	reg.Replace(feature.Groups{"IFR": {{ID: "1", Category: "IFR"}}})
	reg.SetVisibility("IFR", false)

	want := []string{"attached:IFR", "detached:IFR"}
	for _, w := range want {
		select {
		case ev := <-ch:
			if got := ev.Action + ":" + ev.ID; got != w {
				t.Fatalf("event=%q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func TestStyleServiceOverridesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	err := os.WriteFile(path, []byte(`
styles:
  wetland:
    name: Wetland
    color: "#004d40"
    fillColor: "#26a69a"
    opacity: 0.8
    fillOpacity: 0.5
    weight: 1
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	svc, err := NewStyleService(path)
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := svc.Lookup("wetland"); !ok || s.Name != "Wetland" {
		t.Fatalf("wetland=%+v ok=%v", s, ok)
	}
	if _, ok := svc.Lookup("IFR"); !ok {
		t.Fatal("defaults must be kept")
	}

	if err := svc.Put("mangrove", feature.Style{Name: "Mangrove", FillColor: "#00695c"}); err != nil {
		t.Fatal(err)
	}
	reloaded, err := NewStyleService(path)
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := reloaded.Lookup("mangrove"); !ok || s.Name != "Mangrove" {
		t.Fatalf("mangrove=%+v ok=%v, want persisted", s, ok)
	}

	if err := reloaded.Delete("mangrove"); err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Lookup("mangrove"); ok {
		t.Fatal("deleted style must fall back")
	}
	if err := reloaded.Delete("mangrove"); err == nil {
		t.Fatal("deleting a missing style must fail")
	}
}

func TestStyleServiceTableIsACopy(t *testing.T) {
	svc, err := NewStyleService("")
	if err != nil {
		t.Fatal(err)
	}
	table := svc.Table()
	table.Styles["IFR"] = feature.Style{Name: "changed"}
	if s, _ := svc.Lookup("IFR"); s.Name == "changed" {
		t.Fatal("Table must return a copy")
	}
}

func TestStyleServiceRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	os.WriteFile(path, []byte("styles: [not, a, map]"), 0644)
	if _, err := NewStyleService(path); err == nil {
		t.Fatal("expected parse error")
	}
}
