package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/sprout/internal/api"
	"github.com/kalambet/sprout/internal/assistant"
	"github.com/kalambet/sprout/internal/config"
	"github.com/kalambet/sprout/internal/invoker"
	"github.com/kalambet/sprout/internal/provider"
	"github.com/kalambet/sprout/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sprout HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, provider and model status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the plant tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func providerTimeout(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("invalid provider timeout, using default 60s", "value", raw, "error", err)
		return 60 * time.Second
	}
	return d
}

// buildService wires the provider client, the invoker and the assistant.
func buildService(cfg config.Config) (*assistant.Service, *invoker.Invoker) {
	client := provider.NewClientWithBaseURL(cfg.Provider.APIKey, cfg.Provider.BaseURL,
		provider.WithTimeout(providerTimeout(cfg.Provider.Timeout)),
		provider.WithMaxRetries(cfg.Provider.MaxRetries),
	)
	inv := invoker.New(client,
		invoker.Task{
			Name:        "diagnosis",
			Models:      cfg.Diagnosis.Candidates(),
			MaxTokens:   cfg.Diagnosis.MaxTokens,
			Temperature: cfg.Diagnosis.Temperature,
			JSON:        true,
		},
		invoker.Task{
			Name:        "chat",
			Models:      cfg.Chat.Candidates(),
			MaxTokens:   cfg.Chat.MaxTokens,
			Temperature: cfg.Chat.Temperature,
		},
	)
	return assistant.New(inv, cfg.Chat.MaxHistory), inv
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)
	slog.Info("starting sprout", "version", version)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			slog.Warn("flushing traces", "error", err)
		}
	}()

	svc, inv := buildService(cfg)
	handler := api.NewHandler(api.Deps{
		Service:        svc,
		Models:         api.Models{Diagnosis: inv.DiagnosisModels(), Chat: inv.ChatModels()},
		Token:          cfg.Server.APIToken,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Version:        version,
	})
	if cfg.Server.APIToken == "" {
		slog.Info("bearer auth disabled (server.api_token not set)")
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("sprout listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func runMCP(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the MCP transport, so logs go to stderr only.
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	svc, _ := buildService(cfg)
	stdio := server.NewStdioServer(api.NewMCPServer(svc, version))
	slog.Info("MCP server started (stdio transport)")
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	cfg := config.LoadUnchecked()

	client := &http.Client{Timeout: 2 * time.Second}
	base := serverURL(cfg.Server)
	resp, err := client.Get(base + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running at %s", base)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Provider.BaseURL)
	if full, err := config.Load(); err != nil {
		printStatus("Provider check", "skipped: %v", err)
	} else {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		svcClient := provider.NewClientWithBaseURL(full.Provider.APIKey, full.Provider.BaseURL)
		if models, err := svcClient.ListModels(pctx); err != nil {
			printStatus("Provider check", "%s", colorize(colorRed, "unreachable: "+err.Error()))
		} else {
			printStatus("Provider check", "%s", colorize(colorGreen, fmt.Sprintf("ok (%d models)", len(models))))
		}
	}

	printStatus("Diagnosis models", "%s", strings.Join(cfg.Diagnosis.Candidates(), " → "))
	printStatus("Chat models", "%s", strings.Join(cfg.Chat.Candidates(), " → "))
	printStatus("Chat history window", "%d turns", cfg.Chat.MaxHistory)
	return nil
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available at the provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client := provider.NewClientWithBaseURL(cfg.Provider.APIKey, cfg.Provider.BaseURL,
			provider.WithTimeout(providerTimeout(cfg.Provider.Timeout)))
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}
		printModels(cmd, models, cfg)
		return nil
	},
}

func printModels(cmd *cobra.Command, models []provider.Model, cfg config.Config) {
	configured := make(map[string]string)
	for _, m := range cfg.Diagnosis.Candidates() {
		configured[m] = "diagnosis"
	}
	for _, m := range cfg.Chat.Candidates() {
		if prev, ok := configured[m]; ok {
			configured[m] = prev + ", chat"
		} else {
			configured[m] = "chat"
		}
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	sort.Strings(ids)

	out := cmd.OutOrStdout()
	for _, id := range ids {
		if use, ok := configured[id]; ok {
			fmt.Fprintf(out, "%s  %s\n", colorize(colorBold, id), colorize(colorCyan, "("+use+")"))
		} else {
			fmt.Fprintln(out, id)
		}
	}
}

// serverURL returns the base URL a local client should use to reach the server.
func serverURL(s config.ServerConfig) string {
	host := s.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}
