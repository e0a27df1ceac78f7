// Command server runs the cross-match job API: a gin HTTP server for
// submitting and polling jobs plus a WebSocket hub streaming their
// progress, wrapping internal/xmatch.Pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astrocross/nway/internal/api/rest"
	"github.com/astrocross/nway/internal/api/websocket"
	"github.com/astrocross/nway/internal/common/service"
	"github.com/astrocross/nway/internal/eventbus"
	"github.com/astrocross/nway/internal/store"
)

// Config is the server's own startup configuration (distinct from a
// per-job xconfig.Config, which arrives in each job submission).
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the server's out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
	}
}

func main() {
	cfg := DefaultConfig()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// jobService adapts the rest/websocket API onto the service.Service
// lifecycle contract so startup/shutdown ordering stays uniform with
// however many other services this process one day grows.
type jobService struct {
	*service.BaseService
	httpServer *http.Server
	hub        *websocket.Hub
	cfg        Config
}

func newJobService(cfg Config, bus eventbus.EventBus) (*jobService, error) {
	hub, err := websocket.NewHub(context.Background(), bus)
	if err != nil {
		return nil, fmt.Errorf("server: creating websocket hub: %w", err)
	}
	cache := store.NewInMemoryCache()
	apiServer := rest.NewServer(bus, hub, cache)

	return &jobService{
		BaseService: service.NewBaseService("xmatch-job-api"),
		httpServer:  &http.Server{Addr: cfg.Addr, Handler: apiServer.Engine()},
		hub:         hub,
		cfg:         cfg,
	}, nil
}

func (s *jobService) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.SetUnhealthy(err.Error())
		}
	}()
	s.SetHealthy(fmt.Sprintf("listening on %s", s.cfg.Addr))
	return nil
}

func (s *jobService) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.SetUnhealthy("stopped")
	return nil
}

func run(ctx context.Context, cfg Config) error {
	bus := eventbus.NewInMemoryBus()
	svc, err := newJobService(cfg, bus)
	if err != nil {
		return err
	}

	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("server: initialize: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("server: start: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return svc.Stop(stopCtx)
}
