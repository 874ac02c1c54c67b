// Command server exposes the Coordinator (C10) over HTTP: collection and
// document CRUD, resync, and hybrid search, behind a go-chi router with
// rate limiting, following the donor's cmd/server/main.go graceful-shutdown
// pattern (signal.NotifyContext + http.Server.Shutdown) and the pack's
// chi router wiring style (internal/api/router.go's middleware stack).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/chunker"
	"github.com/example/docindex/internal/cli"
	"github.com/example/docindex/internal/config"
	"github.com/example/docindex/internal/coordinator"
	"github.com/example/docindex/internal/embedding"
	"github.com/example/docindex/internal/hybridsearch"
	"github.com/example/docindex/internal/logging"
	"github.com/example/docindex/internal/ratelimiter"
	"github.com/example/docindex/internal/relstore"
	"github.com/example/docindex/internal/syncengine"
	"github.com/example/docindex/internal/syncstream"
	"github.com/example/docindex/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "path to an optional config.yaml overlay")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("loading configuration", "error", err.Error())
	}
	logger := cfg.NewLogger()

	vectorBackend := "qdrant"
	if os.Getenv("DOCINDEX_VECTORSTORE_BACKEND") == "memory" {
		vectorBackend = "memory"
	}
	cli.PrintBanner(os.Stdout, cfg.Server.Host+":"+strconv.Itoa(cfg.Server.Port), vectorBackend, cfg.RelStore.Path)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Fatal("building application", "error", err.Error())
	}
	defer app.rel.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.hub.Run(ctx)

	if err := app.coord.Start(ctx); err != nil {
		logger.Fatal("starting coordinator", "error", err.Error())
	}
	defer app.coord.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      app.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining")
	case err := <-serveErr:
		if err != nil {
			logger.Fatal("http server failed", "error", err.Error())
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err.Error())
	}
}

// application wires every component constructed from cfg into the
// Coordinator façade plus an HTTP router in front of it.
type application struct {
	rel    *relstore.Store
	coord  *coordinator.Coordinator
	hub    *syncstream.Hub
	router http.Handler
}

func buildApplication(cfg *config.Config, logger logging.Logger) (*application, error) {
	rel, err := relstore.Open(&cfg.RelStore, logger)
	if err != nil {
		return nil, err
	}

	vectors, err := buildVectorStore(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	embedClient := embedding.NewDefaultClient(&cfg.Embedding, logger)

	chunkSvc := chunker.NewService(&cfg.Chunker, logger)

	engine := syncengine.New(rel, embedClient, vectors, chunkSvc, cfg.VectorStore.Collection, &cfg.Engine, logger)

	hub := syncstream.NewHub()
	engine.SetNotifier(hub)

	search := hybridsearch.New(rel, embedClient, vectors, cfg.VectorStore.Collection, logger)
	coord := coordinator.New(rel, vectors, embedClient, engine, search, cfg.VectorStore.Collection, logger)

	limiter, err := buildRateLimiter(cfg, logger)
	if err != nil {
		return nil, err
	}

	h := newHandlers(coord, rel)
	router := newRouter(h, limiter, hub)

	return &application{rel: rel, coord: coord, hub: hub, router: router}, nil
}

// buildVectorStore picks Qdrant for a configured host, or an in-process
// MemoryStore when DOCINDEX_VECTORSTORE_BACKEND=memory — useful for local
// smoke-testing without a Qdrant instance running.
func buildVectorStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (vectorstore.Store, error) {
	if os.Getenv("DOCINDEX_VECTORSTORE_BACKEND") == "memory" {
		return vectorstore.NewMemoryStore(), nil
	}
	return vectorstore.NewQdrantStore(ctx, &cfg.VectorStore, logger)
}

// buildRateLimiter picks a RedisLimiter when cfg.RateLimiter.Redis.Addr is
// set — sharing buckets across server instances — or an in-process
// MemoryLimiter otherwise, per spec's single-process default.
func buildRateLimiter(cfg *config.Config, logger logging.Logger) (ratelimiter.Limiter, error) {
	if cfg.RateLimiter.Redis.Addr != "" {
		return ratelimiter.NewRedisLimiter(&cfg.RateLimiter, logger)
	}
	return ratelimiter.NewMemoryLimiter(&cfg.RateLimiter, logger), nil
}

// newRouter lays out the HTTP surface: health checks unversioned, the
// domain operations under /api/v1, following the pack's chi.Route grouping
// style.
func newRouter(h *handlers, limiter ratelimiter.Limiter, hub *syncstream.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(rateLimitMiddleware(limiter))

	r.Get("/health", h.health)
	r.Get("/readiness", h.readiness)
	r.Get("/ws/sync", newSyncStreamHandler(hub))

	r.Route("/api/v1", func(rtr chi.Router) {
		rtr.Route("/collections", func(cr chi.Router) {
			cr.Get("/", h.listCollections)
			cr.Post("/", h.createCollection)
			cr.Delete("/{collectionID}", h.deleteCollection)
			cr.Get("/{collectionID}/search", h.search)
			cr.Post("/{collectionID}/documents", h.importDocument)
		})
		rtr.Route("/documents", func(dr chi.Router) {
			dr.Delete("/{docID}", h.deleteDocument)
			dr.Post("/{docID}/resync", h.resyncDocument)
			dr.Post("/{docID}/cancel", h.cancelDocument)
		})
	})

	r.NotFound(writeNotFound)
	return r
}

// rateLimitMiddleware consumes one token per tier applicable to the
// request before calling the next handler, per spec §4.9's "rejected
// requests never reach the handler" contract.
func rateLimitMiddleware(limiter ratelimiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			class := endpointClassFor(req.Method, req.URL.Path)
			decision, err := limiter.Allow(ratelimiter.Request{IP: clientIP(req), EndpointClass: class})
			if err == nil && !decision.Allowed {
				w.Header().Set("Retry-After", decision.RetryAfter.String())
				writeError(w, apperrors.New(apperrors.KindRateLimited, "rate limit exceeded for tier "+decision.RejectedTier))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func clientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.Split(ip, ",")[0]
	}
	return req.RemoteAddr
}

func endpointClassFor(method, path string) string {
	switch {
	case strings.HasSuffix(path, "/search"):
		return "search"
	case method == http.MethodPost && strings.HasSuffix(path, "/documents"):
		return "upload"
	default:
		return "default"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeError(w http.ResponseWriter, err error) {
	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		writeJSON(w, ae.ToHTTPStatus(), map[string]string{"error": ae.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
