// Package upstream is the HTTP client for the data API that serves filter
// options, feature collections, statistics and per-claim detail records.
// Every payload is checked against its expected shape here, so the layer
// engine only ever sees well-formed features.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/filter"
)

// Config holds the client configuration.
type Config struct {
	BaseURL    string
	DataPath   string // feature collection endpoint, "/api/data" by default
	DetailPath string // detail endpoint prefix, "/api/claim/" by default
	Timeout    time.Duration

	// CategoryKeys and IDKeys list the property names tried, in order, for
	// a feature's category and identifier.
	CategoryKeys []string
	IDKeys       []string

	HTTPClient *http.Client

	// MaxBodyBytes caps a response body; DefaultMaxBodyBytes when zero.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes is the default response body cap.
const DefaultMaxBodyBytes = 64 << 20

// Client talks to the upstream data API.
type Client struct {
	cfg  Config
	http *http.Client
}

// Aggregates are the display-only summary endpoints passed through as-is.
var Aggregates = map[string]string{
	"statistics":     "/api/statistics",
	"fra-progress":   "/api/fra-progress",
	"performance":    "/api/performance",
	"analytics":      "/api/analytics",
	"filter-options": "/api/filter-options",
	"layers":         "/api/layers",
	"status":         "/status",
}

// Property keys probed, in order, for a feature's category and id.
var (
	DefaultCategoryKeys = []string{"class", "fra_type"}
	DefaultIDKeys       = []string{"class_id", "claim_id"}
)

// New creates a client, filling in defaults.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.DataPath == "" {
		cfg.DataPath = "/api/data"
	}
	if cfg.DetailPath == "" {
		cfg.DetailPath = "/api/claim/"
	}
	if len(cfg.CategoryKeys) == 0 {
		cfg.CategoryKeys = DefaultCategoryKeys
	}
	if len(cfg.IDKeys) == 0 {
		cfg.IDKeys = DefaultIDKeys
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// BaseURL returns the upstream base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Status is the upstream availability flag.
type Status struct {
	DataAvailable bool `json:"data_available" doc:"Whether the upstream has data loaded"`
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.getInto(ctx, "/status", nil, &st)
	return st, err
}

// FilterOptions fetches the selectable values per filter field.
func (c *Client) FilterOptions(ctx context.Context) (map[string][]string, error) {
	opts := map[string][]string{}
	err := c.getInto(ctx, "/api/filter-options", nil, &opts)
	return opts, err
}

// LayerHint is the upstream's initial display hint for a category.
type LayerHint struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

// LayerHints fetches initial visibility hints keyed by category.
func (c *Client) LayerHints(ctx context.Context) (map[feature.Category]LayerHint, error) {
	hints := map[feature.Category]LayerHint{}
	err := c.getInto(ctx, "/api/layers", nil, &hints)
	return hints, err
}

// Aggregate fetches one of the pass-through endpoints named in Aggregates.
func (c *Client) Aggregate(ctx context.Context, name string) (json.RawMessage, error) {
	path, ok := Aggregates[name]
	if !ok {
		return nil, fmt.Errorf("unknown aggregate %q", name)
	}
	return c.get(ctx, path, nil)
}

// Export fetches the export payload for a snapshot. The snapshot is
// forwarded unmodified.
func (c *Client) Export(ctx context.Context, snap filter.Snapshot) (json.RawMessage, error) {
	return c.get(ctx, "/api/export", snap.Query())
}

// Detail fetches a single detail record by id.
func (c *Client) Detail(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, c.cfg.DetailPath+url.PathEscape(id), nil)
}

// get performs a GET and returns the body of a successful response that
// carries no error field.
func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: u, Err: err}
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, &MalformedPayloadError{URL: u, Reason: fmt.Sprintf("response exceeds %d bytes", c.cfg.MaxBodyBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := errorField(body)
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &ServerError{URL: u, Status: resp.StatusCode, Message: msg}
	}
	if msg, ok := errorField(body); ok {
		return nil, &ServerError{URL: u, Status: resp.StatusCode, Message: msg}
	}
	if !json.Valid(body) {
		return nil, &MalformedPayloadError{URL: u, Reason: "invalid JSON"}
	}
	return body, nil
}

func (c *Client) getInto(ctx context.Context, path string, query url.Values, v any) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &MalformedPayloadError{URL: c.cfg.BaseURL + path, Reason: "unexpected shape", Err: err}
	}
	return nil
}

// errorField extracts a non-empty top-level "error" string from an object.
func errorField(body []byte) (string, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return "", false
	}
	var p struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &p); err != nil || len(p.Error) == 0 || string(p.Error) == "null" {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(p.Error, &msg); err != nil {
		msg = string(p.Error)
	}
	if msg == "" {
		return "", false
	}
	return msg, true
}
