// Package main is the seiri CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/classify"
	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/embedding"
	"github.com/notedrop/seiri/internal/history"
	"github.com/notedrop/seiri/internal/llm"
	"github.com/notedrop/seiri/internal/organize"
	"github.com/notedrop/seiri/internal/pipeline"
	"github.com/notedrop/seiri/internal/quality"
	"github.com/notedrop/seiri/internal/recognize"
	"github.com/notedrop/seiri/internal/server"
	"github.com/notedrop/seiri/internal/similarity"
	"github.com/notedrop/seiri/internal/vault"
	"github.com/notedrop/seiri/internal/watcher"
	"github.com/notedrop/seiri/internal/writer"
	"github.com/notedrop/seiri/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/seiri/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence, so running from the project dir
// picks up the project's config. Returns the config and the path actually
// loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "process":
		runProcess()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("seiri version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, model prompts, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = components.LLM.Probe(probeCtx)
	probeCancel()
	if err != nil {
		logger.Fatal("Model endpoint unreachable",
			zap.String("base_url", cfg.Provider.BaseURL),
			zap.String("model", cfg.Provider.Model),
			zap.Error(err))
	}

	pipe := components.Pipeline
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			result := pipe.ProcessImage(context.Background(), path)
			if result.Skipped {
				logger.Warn("watched image skipped",
					zap.String("path", path),
					zap.String("reason", result.Reason))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		pipe,
		components.History,
		cfg,
		logger,
		server.WithWatcher(watchSvc),
		server.WithConfigPath(resolvedConfigPath),
		server.WithProber(components.LLM),
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := pipe.Flush(flushCtx); err != nil {
		logger.Warn("final batch flush failed", zap.Error(err))
	}
	flushCancel()
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runProcess() {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: seiri process [flags] <image>...")
		os.Exit(1)
	}
	paths := fs.Args()

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = components.LLM.Probe(probeCtx)
	probeCancel()
	if err != nil {
		logger.Fatal("Model endpoint unreachable",
			zap.String("base_url", cfg.Provider.BaseURL),
			zap.Error(err))
	}

	results := components.Pipeline.ProcessBatch(context.Background(), paths)

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Printf("%s: skipped (%s)\n", r.ImageName, r.Reason)
		case r.Merged:
			fmt.Printf("%s: merged into %s\n", r.ImageName, r.NotePath)
		default:
			fmt.Printf("%s: %s\n", r.ImageName, r.NotePath)
		}
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: seiri import [flags] <vault-directory>")
		os.Exit(1)
	}
	root := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	importer := vault.NewImporter(components.Store, vault.WithLogger(logger))
	n, err := importer.ImportDir(context.Background(), root)
	if err != nil {
		fmt.Printf("Import failed after %d note(s): %v\n", n, err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d note(s) from %s\n", n, root)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Processed history.Stats     `json:"processed"`
	Pending   int               `json:"pending"`
	Provider  map[string]string `json:"provider,omitempty"`
	Config    map[string]any    `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read history directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := history.NewStore(cfg.History.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		stats, err := store.Summary(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Summary failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{Processed: stats}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("processed:  %d   # images run through the pipeline\n", status.Processed.Total)
		fmt.Printf("merged:     %d   # notes merged into existing files\n", status.Processed.Merged)
		fmt.Printf("skipped:    %d   # unreadable images or empty text\n", status.Processed.Skipped)
		fmt.Printf("degraded:   %d   # fallback results after model failures\n", status.Processed.Degraded)
		if status.Pending > 0 {
			fmt.Printf("pending:    %d   # classified items awaiting batch organization\n", status.Pending)
		}
		if status.Provider != nil {
			fmt.Printf("provider:   %s\n", status.Provider["status"])
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: seiri watch <add|remove|list> [path]")
		fmt.Println("  seiri watch add <path>     Add inbox directory to watch")
		fmt.Println("  seiri watch remove <path>  Remove inbox directory from watch")
		fmt.Println("  seiri watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: seiri watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]any{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: seiri watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Store    similarity.Store
	LLM      *llm.Client
	History  *history.Store
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.History != nil {
		_ = c.History.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(cfg.Embedding)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, falling back to mock embeddings",
			zap.String("model_path", cfg.Embedding.ModelPath),
			zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	store, err := similarity.NewChromemStore(cfg.Similarity, embedder, similarity.WithLogger(logger))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize similarity store: %w", err)
	}

	client, err := llm.NewClient(cfg.Provider, llm.WithLogger(logger))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}

	recognizer, err := recognize.NewHTTPRecognizer(cfg.Recognizer, recognize.WithLogger(logger))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}

	hist, err := history.NewStore(cfg.History.DatabasePath)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	noteWriter, err := writer.NewWriter(cfg.Notes, cfg.Similarity.MergeThreshold, store, writer.WithLogger(logger))
	if err != nil {
		_ = hist.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize writer: %w", err)
	}

	assessorOpts := []quality.Option{}
	if debug {
		assessorOpts = append(assessorOpts, quality.WithLogger(logger))
	}
	assessor := quality.NewAssessor(assessorOpts...)

	classifier := classify.NewClassifier(client, store, cfg.Provider, cfg.Similarity.ClassifyTopK,
		classify.WithLogger(logger))
	planner := organize.NewPlanner(client, store, cfg.Provider, cfg.Similarity.BatchTopK,
		organize.WithPlannerLogger(logger))
	organizer := organize.NewOrganizer(client, store, cfg.Provider, cfg.Similarity.BatchTopK,
		organize.WithOrganizerLogger(logger))

	pipe := pipeline.New(
		recognizer,
		assessor,
		classifier,
		planner,
		organizer,
		noteWriter,
		cfg.Notes.BatchSize,
		pipeline.WithLogger(logger),
		pipeline.WithHistory(hist),
	)

	return &Components{
		Embedder: embedder,
		Store:    store,
		LLM:      client,
		History:  hist,
		Pipeline: pipe,
	}, nil
}

func printUsage() {
	fmt.Println(`seiri - Photographed study notes, organized into markdown

Usage:
  seiri server [flags]             Start the HTTP server and inbox watcher
  seiri process [flags] <image>... Process images into notes
  seiri import [flags] <dir>       Import an existing markdown/PDF vault
  seiri status [flags]             Show processing statistics
  seiri watch <add|remove|list>    Manage watched inbox directories
  seiri version                    Show version
  seiri help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/seiri/config.yaml)
  --debug            Enable debug logging (watch events, model prompts, etc.)

Process Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)

Import Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for direct history access)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to read the history database directly.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  seiri server
  seiri process scan1.jpg scan2.jpg
  seiri process --output json page.png
  seiri import ~/notes/vault
  seiri status
  seiri watch add ~/inbox/phone
  seiri watch list`)
}
