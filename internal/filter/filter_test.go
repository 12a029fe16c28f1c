package filter

import (
	"net/url"
	"testing"
)

func TestApplyStripsEmptyValues(t *testing.T) {
	s := Apply(map[string]string{"state": "", "district": "X"})
	if s.Len() != 1 {
		t.Fatalf("len=%d, want 1", s.Len())
	}
	if v, ok := s.Get("district"); !ok || v != "X" {
		t.Fatalf("district=%q ok=%v, want X", v, ok)
	}
	if _, ok := s.Get("state"); ok {
		t.Fatal("state must be omitted")
	}
}

func TestApplyStripsBlankValuesAndKeys(t *testing.T) {
	s := Apply(map[string]string{"state": "   ", " ": "x", "village": " Kadam "})
	if s.Len() != 1 {
		t.Fatalf("len=%d, want 1 (%v)", s.Len(), s.Fields())
	}
	if v, _ := s.Get("village"); v != "Kadam" {
		t.Fatalf("village=%q, want Kadam", v)
	}
}

func TestApplyIsIsolatedFromInput(t *testing.T) {
	in := map[string]string{"state": "Odisha"}
	s := Apply(in)
	in["state"] = "Telangana"
	if v, _ := s.Get("state"); v != "Odisha" {
		t.Fatalf("state=%q, snapshot must not alias input", v)
	}

	fields := s.Fields()
	fields["state"] = "Tripura"
	if v, _ := s.Get("state"); v != "Odisha" {
		t.Fatalf("state=%q, Fields must return a copy", v)
	}
}

func TestClear(t *testing.T) {
	if !Clear().IsEmpty() {
		t.Fatal("Clear must return the empty snapshot")
	}
	if !Clear().Equal(Apply(map[string]string{"state": ""})) {
		t.Fatal("all-blank apply must equal Clear")
	}
	if !Clear().Equal(Snapshot{}) {
		t.Fatal("zero value must equal Clear")
	}
}

func TestEqual(t *testing.T) {
	a := Apply(map[string]string{"state": "Odisha", "district": "Koraput"})
	b := Apply(map[string]string{"district": "Koraput", "state": "Odisha", "village": ""})
	c := Apply(map[string]string{"state": "Odisha"})
	d := Apply(map[string]string{"state": "Odisha", "district": "Rayagada"})

	if !a.Equal(b) || !b.Equal(a) {
		t.Fatal("a and b must be equal")
	}
	if a.Equal(c) || c.Equal(a) {
		t.Fatal("a and c differ in size")
	}
	if a.Equal(d) {
		t.Fatal("a and d differ in value")
	}
}

func TestQueryEncoding(t *testing.T) {
	s := Apply(map[string]string{"state": "Madhya Pradesh", "fra_type": "IFR"})
	if got, want := s.String(), "fra_type=IFR&state=Madhya+Pradesh"; got != want {
		t.Fatalf("String()=%q, want %q", got, want)
	}
	if keys := s.Keys(); len(keys) != 2 || keys[0] != "fra_type" {
		t.Fatalf("keys=%v", keys)
	}
}

func TestFromQuery(t *testing.T) {
	q := url.Values{"state": {"Tripura", "ignored"}, "district": {""}}
	s := FromQuery(q)
	if s.Len() != 1 {
		t.Fatalf("len=%d, want 1", s.Len())
	}
	if v, _ := s.Get("state"); v != "Tripura" {
		t.Fatalf("state=%q, want Tripura", v)
	}
}
