// Package server wires the layer engine, its supporting services and the
// Huma API into one http.Handler.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-fra/internal/api"
	"github.com/joeblew999/plat-fra/internal/controller"
	"github.com/joeblew999/plat-fra/internal/db"
	"github.com/joeblew999/plat-fra/internal/detail"
	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/history"
	"github.com/joeblew999/plat-fra/internal/layer"
	"github.com/joeblew999/plat-fra/internal/metrics"
	"github.com/joeblew999/plat-fra/internal/service"
	"github.com/joeblew999/plat-fra/internal/upstream"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	Upstream   string        // base URL of the data server
	DataPath   string        // path of the filtered-data endpoint
	DataDir    string        // DuckDB and style file location; empty keeps both in memory
	StylesFile string        // overrides DataDir/styles.yaml
	Debounce   time.Duration // window for debounced filter changes
	Timeout    time.Duration // upstream request timeout
	Logger     *zerolog.Logger
}

// Server is the FRA layer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New creates a new server. Nothing is fetched until Start is called.
func New(cfg Config) (*Server, error) {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-fra API", "1.0.0")
	humaConfig.Info.Description = "Forest Rights Act map layer engine: filtered loads, categorized layers, styles and claim details."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	stylesFile := cfg.StylesFile
	if stylesFile == "" && cfg.DataDir != "" {
		stylesFile = filepath.Join(cfg.DataDir, "styles.yaml")
	}
	styles, err := service.NewStyleService(stylesFile)
	if err != nil {
		return nil, fmt.Errorf("loading styles: %w", err)
	}

	m := metrics.New()
	bus := service.NewEventBus()
	registry := layer.NewRegistry(service.NewBusSurface(bus), styles.Table())
	client := upstream.New(upstream.Config{
		BaseURL:  cfg.Upstream,
		DataPath: cfg.DataPath,
		Timeout:  cfg.Timeout,
	})

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		metrics: m,
		log:     log,
	}

	var hist *history.Store
	conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "fra"})
	if err != nil {
		log.Warn().Err(err).Msg("duckdb unavailable, load history disabled")
	} else {
		s.db = conn
		hist, err = history.New(context.Background(), conn)
		if err != nil {
			log.Warn().Err(err).Msg("history table unavailable, load history disabled")
			hist = nil
		}
	}

	opts := controller.Options{
		Debounce: cfg.Debounce,
		Bus:      bus,
		Metrics:  m,
		Logger:   &log,
	}
	if hist != nil {
		opts.Recorder = hist
	}

	s.services = &api.Services{
		Controller: controller.New(client, registry, opts),
		Registry:   registry,
		Styles:     styles,
		Details:    detail.NewResolver(client, m, &log),
		Upstream:   client,
		History:    hist,
		Bus:        bus,
	}
	s.routes()
	return s, nil
}

// Start seeds layer visibility from the upstream layer hints and performs
// the initial unfiltered load. Both failures are logged; the server keeps
// serving and a later reload can recover.
func (s *Server) Start(ctx context.Context) {
	hints, err := s.services.Upstream.LayerHints(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("layer hints unavailable, all layers start visible")
	} else {
		seed := make(map[feature.Category]bool, len(hints))
		for c, h := range hints {
			seed[c] = h.Visible
		}
		s.services.Registry.SeedVisibility(seed)
	}

	if _, err := s.services.Controller.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("initial load failed")
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the wired services.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close stops pending reloads and closes the database.
func (s *Server) Close() error {
	s.services.Controller.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)

	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)

	s.handler = middleware.RequestID(s.instrument(s.mux))
}

// instrument records each request in the access log and the HTTP metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTPRequest(r.Method, route, status, elapsed)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-fra",
		"status":  "running",
	})
}
