package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/reloved/flutter-openwrap-sdk/internal/bridge"
	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/internal/endpoints"
	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
	"github.com/reloved/flutter-openwrap-sdk/internal/storage"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
	"github.com/reloved/flutter-openwrap-sdk/pkg/redis"
)

// Bridge wires the SDK, the plugin and one transport together
type Bridge struct {
	config   *BridgeConfig
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db          *sql.DB
	redisClient *redis.Client
	profiles    openwrap.ProfileStore

	tracker *openwrap.Tracker
	sdk     *openwrap.SDK
	plugin  *bridge.Plugin
	outbox  *channel.Outbox

	// stdio mode
	stdin  io.Reader
	stdout io.Writer
	stdio  *channel.StdioTransport

	// http mode
	events     *endpoints.EventStream
	httpServer *http.Server
}

// NewBridge creates a bridge reading calls from os.Stdin in stdio mode
func NewBridge(cfg *BridgeConfig) (*Bridge, error) {
	return newBridge(cfg, os.Stdin, os.Stdout)
}

func newBridge(cfg *BridgeConfig, stdin io.Reader, stdout io.Writer) (*Bridge, error) {
	b := &Bridge{config: cfg, stdin: stdin, stdout: stdout}
	if err := b.initialize(); err != nil {
		return nil, err
	}
	return b, nil
}

// initialize sets up all bridge components
func (b *Bridge) initialize() error {
	log := logger.Log

	log.Info().
		Str("mode", b.config.Mode).
		Str("platform", b.config.Platform).
		Str("auction_url", b.config.AuctionURL).
		Dur("auction_timeout", b.config.AuctionTimeout).
		Str("config_file", b.config.ConfigFile).
		Msg("Initializing OpenWrap bridge")

	b.registry = prometheus.NewRegistry()
	b.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b.metrics = metrics.NewMetrics(b.config.MetricsNamespace, b.registry)

	// Storage failures are non-fatal: auctions fall back to request values
	if err := b.initDatabase(); err != nil {
		log.Warn().Err(err).Msg("Database initialization failed, profile overrides disabled")
	}
	if err := b.initRedis(); err != nil {
		log.Warn().Err(err).Msg("Redis initialization failed, profile cache disabled")
	}
	b.initProfiles()

	if err := b.initSDK(); err != nil {
		return err
	}

	switch b.config.Mode {
	case ModeHTTP:
		b.initHTTP()
	default:
		b.initStdio()
	}
	return nil
}

// initDatabase connects to PostgreSQL if configured
func (b *Bridge) initDatabase() error {
	log := logger.Log

	if b.config.DatabaseURL == "" {
		log.Info().Msg("database_url not set, profile store disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := storage.NewDBConnection(ctx, b.config.DatabaseURL)
	if err != nil {
		return err
	}
	store := storage.NewProfileStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return err
	}
	b.db = db
	log.Info().Msg("Profile store connected to PostgreSQL")
	return nil
}

// initRedis creates the Redis client if configured
func (b *Bridge) initRedis() error {
	log := logger.Log

	if b.config.RedisURL == "" {
		log.Info().Msg("redis_url not set, profile cache disabled")
		return nil
	}

	client, err := redis.New(b.config.RedisURL)
	if err != nil {
		return err
	}
	b.redisClient = client
	log.Info().Msg("Redis client initialized")
	return nil
}

func (b *Bridge) initProfiles() {
	if b.db == nil {
		return
	}
	var store openwrap.ProfileStore = storage.NewProfileStore(b.db)
	if b.redisClient != nil {
		store = storage.NewCachedProfileStore(store, b.redisClient, b.config.ProfileCacheTTL)
		logger.Log.Info().Dur("ttl", b.config.ProfileCacheTTL).Msg("Profile cache enabled")
	}
	b.profiles = store
}

// initSDK builds the SDK and its collaborators
func (b *Bridge) initSDK() error {
	positions, err := openwrap.PositionTableFor(b.config.Platform)
	if err != nil {
		return err
	}

	b.tracker = openwrap.NewTracker(nil, b.metrics)
	auctioneer := openwrap.NewHTTPAuctioneer(openwrap.HTTPAuctioneerConfig{
		Endpoint: b.config.AuctionURL,
		HTTPClient: &http.Client{
			// Per-request deadlines come from the auction context
			Timeout: b.config.AuctionTimeout + time.Second,
		},
		Metrics: b.metrics,
	})

	opts := openwrap.Options{
		Auctioneer: auctioneer,
		Tracker:    b.tracker,
		Metrics:    b.metrics,
		Positions:  positions,
		Platform:   b.config.Platform,
	}
	if b.profiles != nil {
		opts.Profiles = b.profiles
	}
	b.sdk = openwrap.New(opts)
	return nil
}

func (b *Bridge) initStdio() {
	// The transport needs the plugin and the plugin's outbox needs the transport
	var plugin *bridge.Plugin
	b.stdio = channel.NewStdioTransport(b.stdin, b.stdout,
		channel.HandlerFunc(func(ctx context.Context, call *channel.MethodCall) (any, error) {
			return plugin.HandleMethodCall(ctx, call)
		}), b.metrics)
	b.outbox = channel.NewOutbox(b.stdio, config.OutboxSize, b.metrics)
	plugin = bridge.NewPlugin(b.sdk, bridge.NewRegistry(b.metrics), b.outbox, b.metrics)
	b.plugin = plugin
	logger.Log.Info().Str("channel", config.ChannelName).Msg("Stdio transport initialized")
}

func (b *Bridge) initHTTP() {
	gin.SetMode(gin.ReleaseMode)

	b.events = endpoints.NewEventStream(b.config.EventBacklog, config.OutboxSize)
	b.outbox = channel.NewOutbox(b.events, config.OutboxSize, b.metrics)
	b.plugin = bridge.NewPlugin(b.sdk, bridge.NewRegistry(b.metrics), b.outbox, b.metrics)

	checks := map[string]endpoints.Check{"postgres": nil, "redis": nil}
	if b.db != nil {
		checks["postgres"] = b.db.PingContext
	}
	if b.redisClient != nil {
		checks["redis"] = b.redisClient.Ping
	}

	router := endpoints.NewRouter(endpoints.RouterConfig{
		Handler:  b.plugin,
		Views:    b.plugin,
		Events:   b.events,
		Metrics:  b.metrics,
		Gatherer: b.registry,
		Checks:   checks,
	})

	b.httpServer = &http.Server{
		Addr:         ":" + b.config.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}
	logger.Log.Info().Str("addr", b.httpServer.Addr).Msg("HTTP transport initialized")
}

// Plugin returns the method channel dispatcher
func (b *Bridge) Plugin() *bridge.Plugin {
	return b.plugin
}

// Run serves the configured transport until ctx is cancelled. In stdio mode
// Run also returns when the input is closed.
func (b *Bridge) Run(ctx context.Context) error {
	if b.httpServer != nil {
		return b.serveHTTP(ctx)
	}
	err := b.stdio.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bridge) serveHTTP(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.httpServer.Addr, err)
	}
	return b.serveListener(ctx, ln)
}

func (b *Bridge) serveListener(ctx context.Context, ln net.Listener) error {
	logger.Log.Info().Str("addr", ln.Addr().String()).Msg("Bridge listening")

	errCh := make(chan error, 1)
	go func() {
		if err := b.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown destroys every ad, flushes outward events and releases resources
func (b *Bridge) Shutdown(ctx context.Context) error {
	log := logger.Log
	log.Info().Msg("Starting graceful shutdown")

	var errs []error

	if b.events != nil {
		// Event streams never finish on their own
		b.events.Close()
	}
	if b.httpServer != nil {
		if err := b.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	b.plugin.Close()
	b.outbox.Close()
	log.Info().Msg("Outward events flushed")

	b.tracker.Close()

	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Msg("Bridge stopped gracefully")
	return nil
}
