package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-fra/internal/feature"
	"github.com/joeblew999/plat-fra/internal/server"
	"github.com/joeblew999/plat-fra/internal/service"
	"github.com/joeblew999/plat-fra/internal/upstream"
)

// Options defines all CLI flags and env vars for the FRA server.
// Flags: --host, --port, --upstream, --data-path, --data-dir, --styles, --debounce-ms, --timeout-s, --log-level
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_UPSTREAM, ...
type Options struct {
	Host       string `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int    `doc:"Port to listen on" short:"p" default:"8087"`
	Upstream   string `doc:"Base URL of the FRA data server" default:"http://localhost:5000"`
	DataPath   string `doc:"Path of the filtered-data endpoint" default:"/api/data"`
	DataDir    string `doc:"Directory for the history database and style file (empty keeps both in memory)" default:".data"`
	Styles     string `doc:"Category style YAML file (defaults to <data-dir>/styles.yaml)"`
	DebounceMS int    `doc:"Debounce window for scheduled filter changes in milliseconds" default:"300"`
	TimeoutS   int    `doc:"Upstream request timeout in seconds" default:"30"`
	LogLevel   string `doc:"Log level (trace, debug, info, warn, error)" default:"info"`
}

func newServer(opts *Options) (*server.Server, error) {
	logger := server.NewLogger(opts.LogLevel)
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		Upstream:   opts.Upstream,
		DataPath:   opts.DataPath,
		DataDir:    opts.DataDir,
		StylesFile: opts.Styles,
		Debounce:   time.Duration(opts.DebounceMS) * time.Millisecond,
		Timeout:    time.Duration(opts.TimeoutS) * time.Second,
		Logger:     &logger,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server
		var srv *server.Server

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-fra layer server starting...\n")
			fmt.Printf("  Server:   %s\n", baseURL)
			fmt.Printf("  Upstream: %s\n", opts.Upstream)
			fmt.Printf("  Data:     %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Events:   %s/api/v1/events\n", baseURL)
			fmt.Printf("  Metrics:  %s/metrics\n", baseURL)
			fmt.Printf("  Docs:     %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI:  %s/openapi.json\n", baseURL)
			fmt.Println()

			go srv.Start(context.Background())

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
			srv.Close()
		})
	})

	cli.Root().Use = "fra"
	cli.Root().Short = "Forest Rights Act map layer engine"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.DataDir = ""
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// classify subcommand: categorize a local GeoJSON file offline
	classifyCmd := &cobra.Command{
		Use:   "classify <file.geojson>",
		Short: "Classify a GeoJSON FeatureCollection and report per-category counts and styles",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			if err := classifyFile(cmd, args[0], opts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	cli.Root().AddCommand(classifyCmd)

	cli.Run()
}

func classifyFile(cmd *cobra.Command, path string, opts *Options) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	features, err := upstream.DecodeFeatures(path, body, upstream.DefaultCategoryKeys, upstream.DefaultIDKeys)
	if err != nil {
		return err
	}

	styles := feature.DefaultStyles()
	if opts.Styles != "" {
		svc, err := service.NewStyleService(opts.Styles)
		if err != nil {
			return err
		}
		styles = svc.Table()
	}

	groups := feature.Classify(features)
	out := cmd.OutOrStdout()
	for _, c := range groups.Categories() {
		style, matched := styles.Lookup(c)
		name := string(c)
		if c == feature.Uncategorized {
			name = "(uncategorized)"
		}
		note := ""
		if !matched {
			note = "  (fallback style)"
		}
		fmt.Fprintf(out, "%-20s %6d  %s%s\n", name, len(groups[c]), style.Color, note)
	}
	fmt.Fprintf(out, "%-20s %6d\n", "total", groups.Total())
	return nil
}
