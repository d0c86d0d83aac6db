package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/semvault/artifact"
	"github.com/c360studio/semvault/config"
	"github.com/c360studio/semvault/datareference"
	"github.com/c360studio/semvault/purl"
	"github.com/c360studio/semvault/schema"
	"github.com/c360studio/semvault/store"
	"github.com/c360studio/semvault/store/kv"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// App wires the configured store, schema registry and artifact manager.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	repo     store.Repository
	schemas  *schema.Registry
	manager  *artifact.Manager
	registry *prometheus.Registry
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		schemas:  schema.NewRegistry(logger),
		registry: prometheus.NewRegistry(),
	}, nil
}

// Start opens the permanent store, loads the schemas and builds the manager.
func (a *App) Start(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		a.repo = store.NewMemoryRepository()
	case config.BackendNATS:
		if err := a.startNATS(); err != nil {
			return fmt.Errorf("start NATS: %w", err)
		}
		repo, err := kv.New(ctx, a.js, a.cfg.NATS.Bucket,
			kv.WithLogger(a.logger),
			kv.WithCommitPrefix(vocab.ManagementPrefix))
		if err != nil {
			return fmt.Errorf("open statement bucket: %w", err)
		}
		a.repo = repo
	}

	if err := a.loadSchemas(ctx); err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	metrics := artifact.NewMetrics()
	if err := metrics.Register(a.registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	processor := purl.NewSimpleProcessor(a.cfg.Purl.Prefix, a.cfg.Purl.TemporaryPrefixes...)
	verifiers := datareference.NewRegistry(a.logger)
	if len(a.cfg.DataReferences) > 0 {
		verifiers.Register(datareference.NewFileVerifier(a.cfg.DataReferences))
	}

	manager, err := artifact.New(a.repo, a.schemas,
		artifact.WithLogger(a.logger),
		artifact.WithPurls(purl.NewManager(purl.WithLogger(a.logger), purl.WithProcessor(processor))),
		artifact.WithVerifiers(verifiers),
		artifact.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create artifact manager: %w", err)
	}
	a.manager = manager

	a.logger.Debug("Components initialized", "backend", a.cfg.Store.Backend)
	return nil
}

// loadSchemas installs the manifest when it exists. Without one the schema
// records already in the store are used.
func (a *App) loadSchemas(ctx context.Context) error {
	path := a.cfg.Schemas.Manifest
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return a.installManifest(ctx, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		a.logger.Debug("No schema manifest, reading installed schemas", "path", path)
	}
	_, err := a.schemas.LoadFromStore(ctx, a.repo)
	return err
}

func (a *App) installManifest(ctx context.Context, path string) error {
	m, err := schema.LoadManifest(path)
	if err != nil {
		return err
	}
	// validate before writing anything
	if _, err := schema.Resolve(m, a.logger); err != nil {
		return err
	}
	n, err := schema.Install(ctx, a.repo, m)
	if err != nil {
		return err
	}
	if _, err := a.schemas.Load(m); err != nil {
		return err
	}
	a.logger.Debug("Installed schemas", "manifest", path, "statements", n)
	return nil
}

func (a *App) startNATS() error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		a.logger.Debug("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  a.cfg.NATS.StoreDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

// ServeMetrics exposes the metrics registry on addr until ctx is done.
func (a *App) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}

// Shutdown stops all components.
func (a *App) Shutdown() {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}
