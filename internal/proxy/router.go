package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
	"github.com/florianilch/copilot-bridge/internal/renamer"
	"github.com/florianilch/copilot-bridge/internal/tokencache"
)

// tracerName identifies spans this package starts to whatever TracerProvider
// is registered globally (a no-op provider if the process never configures
// one — starting spans is still safe and cheap either way).
const tracerName = "github.com/florianilch/copilot-bridge/internal/proxy"

// Router binds every handler to its endpoints and owns the HTTP server's
// lifecycle.
type Router struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Router implements http.Handler.
var _ http.Handler = (*Router)(nil)

// Config carries everything Router needs to build its handlers.
type Config struct {
	Client            *copilotclient.Client
	Tokens            *tokencache.Cache
	Renamer           *renamer.Renamer
	ModelsCache       *ModelsCache
	DefaultCredential string
	AccountType       string
	VSCodeVersion     string
	EmulateThinking   bool
	Logger            *slog.Logger
}

// New builds a Router wiring the health, models, chat-completions, and
// messages endpoints, each wrapped in CORS, logging, and panic recovery.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	models := &ModelsHandler{
		Client:            cfg.Client,
		Tokens:            cfg.Tokens,
		Renamer:           cfg.Renamer,
		Cache:             cfg.ModelsCache,
		DefaultCredential: cfg.DefaultCredential,
		AccountType:       cfg.AccountType,
		VSCodeVersion:     cfg.VSCodeVersion,
	}

	chatCompletions := &ChatCompletionsHandler{
		Client:            cfg.Client,
		Tokens:            cfg.Tokens,
		Renamer:           cfg.Renamer,
		DefaultCredential: cfg.DefaultCredential,
		AccountType:       cfg.AccountType,
		VSCodeVersion:     cfg.VSCodeVersion,
	}

	messages := &MessagesHandler{
		Client:            cfg.Client,
		Tokens:            cfg.Tokens,
		Renamer:           cfg.Renamer,
		ModelsCache:       cfg.ModelsCache,
		DefaultCredential: cfg.DefaultCredential,
		AccountType:       cfg.AccountType,
		VSCodeVersion:     cfg.VSCodeVersion,
		EmulateThinking:   cfg.EmulateThinking,
	}

	tracer := otel.Tracer(tracerName)
	wrap := func(h http.Handler) http.Handler {
		return applyMiddlewares(h, cors, Tracing(tracer), Logging(logger), Recovery)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", wrap(http.HandlerFunc(health)))
	registerWithPreflight(mux, http.MethodGet, "/v1/models", wrap(models))
	registerWithPreflight(mux, http.MethodGet, "/models", wrap(models))
	registerWithPreflight(mux, http.MethodPost, "/v1/chat/completions", wrap(chatCompletions))
	registerWithPreflight(mux, http.MethodPost, "/chat/completions", wrap(chatCompletions))
	registerWithPreflight(mux, http.MethodPost, "/v1/messages", wrap(messages))

	return &Router{mux: mux}
}

// registerWithPreflight binds handler to method+path and also to an
// OPTIONS request on the same path, since net/http's method-specific
// routing otherwise 405s a CORS preflight before the cors middleware ever
// runs. handler is already wrapped in cors, which answers the OPTIONS
// request itself without invoking the underlying endpoint.
func registerWithPreflight(mux *http.ServeMux, method, path string, handler http.Handler) {
	mux.Handle(method+" "+path, handler)
	mux.Handle(http.MethodOptions+" "+path, handler)
}

// health answers the liveness probe: an empty body, 200 OK.
func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// cors applies a permissive policy: this proxy has no notion of an
// authorized origin set, since its clients are local CLIs and editor
// extensions, not browsers enforcing same-origin isolation.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.mux.ServeHTTP(w, r)
}

// Start begins serving on address in the background and returns immediately.
// Startup errors (port in use, permission denied) are returned synchronously;
// runtime errors are delivered on the returned channel.
func (router *Router) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	router.server = &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := router.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown gracefully stops the HTTP server, forcing a close if the
// context is cancelled before in-flight requests drain.
func (router *Router) Shutdown(ctx context.Context) error {
	if router.server == nil {
		return nil
	}
	if err := router.server.Shutdown(ctx); err != nil {
		_ = router.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
