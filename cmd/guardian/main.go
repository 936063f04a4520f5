package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/modelguard/guardian"
	"github.com/modelguard/guardian/internal/client"
	"github.com/modelguard/guardian/internal/config"
	"github.com/modelguard/guardian/internal/flow"
	"github.com/modelguard/guardian/internal/memory"
	"github.com/modelguard/guardian/internal/orchestrator"
	"github.com/modelguard/guardian/internal/planner"
	"github.com/modelguard/guardian/internal/policy"
	"github.com/modelguard/guardian/internal/server"
	"github.com/modelguard/guardian/pkg/log"
)

type guardian struct {
	cfg        *config.Config
	clients    *client.Set
	store      *memory.Store
	policy     *policy.Engine
	flows      *flow.Flows
	manifests  *flow.ManifestStore
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrCreateClients   = errors.New("failed to create adapter clients")
	ErrCreatePolicy    = errors.New("failed to create policy engine")
	ErrCreateManifests = errors.New("failed to open manifest store")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	g := &guardian{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	g.setupLogging()

	if err := g.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (g *guardian) run() error {
	if err := g.initializeClients(); err != nil {
		return err
	}
	if err := g.initializeCore(); err != nil {
		return err
	}
	g.startServer()

	signal.Notify(g.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(g.quit)
	<-g.quit

	g.shutdown()
	return nil
}

func (g *guardian) setupLogging() {
	level, ok := logLevels[g.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	logger := log.NewWithLevel(app.Name, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Guardian starting",
		slog.String("log_level", g.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("engine_url", g.cfg.EngineURL),
		slog.String("sdlc_url", g.cfg.SDLCURL),
		slog.String("depot_url", g.cfg.DepotURL),
		slog.String("project_id", g.cfg.ProjectID),
		slog.String("workspace_id", g.cfg.WorkspaceID),
		slog.String("api_host", g.cfg.APIHost),
		slog.Int("api_port", g.cfg.APIPort))
}

func (g *guardian) initializeClients() error {
	registry := g.idempotencyRegistry()

	engine, err := client.NewEngineClient(client.Options{
		Service: "engine",
		BaseURL: g.cfg.EngineURL,
		Token:   g.cfg.EngineToken,
		Timeout: g.cfg.AdapterTimeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateClients, err)
	}

	sdlc, err := client.NewSDLCClient(client.Options{
		Service: "sdlc",
		BaseURL: g.cfg.SDLCURL,
		Token:   g.cfg.SDLCToken,
		Timeout: g.cfg.AdapterTimeout,
	}, registry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateClients, err)
	}

	depot, err := client.NewDepotClient(client.Options{
		Service: "depot",
		BaseURL: g.cfg.DepotURL,
		Token:   g.cfg.DepotToken,
		Timeout: g.cfg.AdapterTimeout,
	}, registry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateClients, err)
	}

	g.clients = &client.Set{Engine: engine, SDLC: sdlc, Depot: depot}
	return nil
}

func (g *guardian) idempotencyRegistry() client.IdempotencyRegistry {
	if addr := g.cfg.IdempotencyRedisAddr; addr != "" {
		return client.NewRedisRegistry(addr, "", g.cfg.IdempotencyTTL)
	}
	return client.NewMemoryRegistry(g.cfg.IdempotencyTTL)
}

func (g *guardian) initializeCore() error {
	var opts []policy.Option
	if script := g.cfg.PolicyScript; script != "" {
		guard, err := policy.NewGuard(script)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCreatePolicy, err)
		}
		opts = append(opts, policy.WithGuard(guard))
	}
	g.policy = policy.NewEngine(opts...)

	g.store = memory.NewStore(0)

	manifests, err := flow.NewManifestStore(
		context.Background(), g.cfg.ManifestBucketURL, "manifests/",
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateManifests, err)
	}
	g.manifests = manifests

	exec := flow.NewExecutor(flow.NewRetryPolicy(g.cfg.Retry), g.store)
	g.flows = flow.New(
		g.clients, g.store, g.policy, exec, g.manifests, flow.Options{
			ProjectID:           g.cfg.ProjectID,
			WorkspaceID:         g.cfg.WorkspaceID,
			BackfillParallelism: g.cfg.BackfillParallelism,
			BackfillTolerance:   g.cfg.BackfillTolerance,
			SampleSize:          g.cfg.SampleSize,
		},
	)
	return nil
}

func (g *guardian) startServer() {
	orch := orchestrator.New(
		planner.New(g.policy, g.cfg.ProjectID, g.cfg.WorkspaceID),
		g.flows, g.store,
	)

	g.apiServer = server.NewServer(
		orch, g.flows, g.clients, g.store, g.cfg.APIKeys,
	)
	mux := g.apiServer.SetupRoutes()

	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.cfg.APIHost, g.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", g.httpServer.Addr))
		err := g.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (g *guardian) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), g.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := g.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	g.apiServer.CloseWebSockets()
	g.store.Close()

	if err := g.manifests.Close(); err != nil {
		slog.Error("Manifest store close failed", log.Error(err))
	}

	slog.Info("Server exited")
}
