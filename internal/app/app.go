package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
	"github.com/florianilch/copilot-bridge/internal/proxy"
	"github.com/florianilch/copilot-bridge/internal/renamer"
	"github.com/florianilch/copilot-bridge/internal/tokencache"
)

// App orchestrates the lifecycle of the proxy server and its background
// token-refresh tasks.
type App struct {
	cfg    *Config
	router *proxy.Router
	tokens *tokencache.Cache
}

// New creates a new App instance. No I/O is performed here — the default
// credential's first token exchange happens from Start, where it can be
// surfaced as a startup failure instead of swallowed during construction.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := copilotclient.New(copilotclient.DefaultTransport())
	tokens := tokencache.New(client, cfg.Upstream.VSCodeVersion)
	rn := renamer.New(cfg.Renamer.Auto, cfg.Renamer.Map)

	router := proxy.New(proxy.Config{
		Client:            client,
		Tokens:            tokens,
		Renamer:           rn,
		ModelsCache:       proxy.NewModelsCache(cfg.ModelsCache.TTL),
		DefaultCredential: cfg.Auth.DefaultCredential,
		AccountType:       cfg.Upstream.AccountType,
		VSCodeVersion:     cfg.Upstream.VSCodeVersion,
		EmulateThinking:   cfg.Thinking.Emulate,
	})

	return &App{
		cfg:    cfg,
		router: router,
		tokens: tokens,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.Auth.DefaultCredential != "" {
		if _, err := a.tokens.GetOrExchange(ctx, a.cfg.Auth.DefaultCredential); err != nil {
			return fmt.Errorf("initial token exchange for default credential failed: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	tokencache.StartRefreshLoop(gCtx, g, a.tokens, a.cfg.Auth.DefaultCredential)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting proxy server", "address", address)
	serverErrCh, err := a.router.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.router.Shutdown)

	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
