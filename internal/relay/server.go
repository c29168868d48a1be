// Package relay implements the credential-holding metadata relay. It exposes
// the two TMDB endpoints streamscout needs, adds the API key upstream, and
// rejects everything else, so it cannot be used as an open proxy.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"streamscout/internal/httputil"
)

// Route names, also used as metric labels.
const (
	routeSearch    = "search"
	routeProviders = "providers"
	routeHealth    = "healthz"
	routeMetrics   = "metrics"
)

// forwardedParams are the only client query parameters passed upstream.
var forwardedParams = []string{"query", "page", "language", "include_adult", "region"}

// Options configures a Server.
type Options struct {
	Upstream      string // e.g. "https://api.themoviedb.org/3"
	APIKey        string
	RatePerSecond float64
	Burst         int
	Client        *http.Client
}

// Server is the relay HTTP handler.
type Server struct {
	upstream string
	apiKey   string
	limiter  *rate.Limiter
	client   *http.Client
	registry *prometheus.Registry
	metrics  *metrics
	router   *mux.Router
}

// New builds a Server. The API key is required.
func New(opts Options) (*Server, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("relay: an API key is required (set TMDB_API_KEY or relay.api_key)")
	}
	if err := httputil.ValidateURL(opts.Upstream); err != nil {
		return nil, fmt.Errorf("relay upstream: %w", err)
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 20
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.Client == nil {
		opts.Client = httputil.WithTimeout(15 * time.Second)
	}

	s := &Server{
		upstream: strings.TrimRight(opts.Upstream, "/"),
		apiKey:   strings.TrimSpace(opts.APIKey),
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		client:   opts.Client,
		registry: prometheus.NewRegistry(),
	}
	s.metrics = newMetrics(s.registry)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/search/multi", s.handleSearch).
		Methods(http.MethodGet, http.MethodOptions).Name(routeSearch)
	r.HandleFunc("/{kind:movie|tv}/{id:[0-9]+}/watch/providers", s.handleProviders).
		Methods(http.MethodGet, http.MethodOptions).Name(routeProviders)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet).Name(routeHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).
		Methods(http.MethodGet).Name(routeMetrics)

	r.Use(requestID, s.instrument, cors)
	return r
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[relay] listening on %s, forwarding to %s", addr, s.upstream)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	log.Printf("[relay] shut down")
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
