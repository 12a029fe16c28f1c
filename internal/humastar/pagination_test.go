package humastar

import (
	"strings"
	"testing"
)

func TestPaginationLinks(t *testing.T) {
	p := PageBody[int]{Total: 45, Offset: 20, Limit: 10}
	links := strings.Join(p.PaginationLinks("/api/v1/history"), ",")

	for _, want := range []string{
		`</api/v1/history?offset=0&limit=10>; rel="first"`,
		`</api/v1/history?offset=10&limit=10>; rel="prev"`,
		`</api/v1/history?offset=30&limit=10>; rel="next"`,
		`</api/v1/history?offset=40&limit=10>; rel="last"`,
	} {
		if !strings.Contains(links, want) {
			t.Fatalf("missing %s in %s", want, links)
		}
	}
}

func TestPaginationLinksFirstPageEmpty(t *testing.T) {
	p := PageBody[int]{Total: 0, Offset: 0, Limit: 20}
	links := p.PaginationLinks("/api/v1/history")
	if len(links) != 2 {
		t.Fatalf("links=%v, want first and last only", links)
	}
	if !strings.Contains(links[1], "offset=0") {
		t.Fatalf("last=%s, want offset=0", links[1])
	}
	if (PageBody[int]{}).PaginationLinks("/x") != nil {
		t.Fatal("zero limit must produce no links")
	}
}
