// Package server exposes the annotator over HTTP.
//
// Routes:
//
//	GET    /annotate?url=...               fetch a page and return it annotated
//	POST   /annotate                       annotate the HTML request body
//	GET    /stars/{owner}/{name}           star count through both cache tiers
//	GET    /status/{owner}/{name}          persisted status
//	PUT    /status/{owner}/{name}          set status ({"status": "..."})
//	POST   /status/{owner}/{name}/cycle    advance status to the next one
//	GET    /debug/cache                    both cache tiers
//	DELETE /debug/cache                    clear both tiers
//	GET    /debug/stats                    hook counters and recent notices
//	GET    /healthz
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/starmark/pkg/notify"
	"github.com/matzehuels/starmark/pkg/observability"
	"github.com/matzehuels/starmark/pkg/pipeline"
	"github.com/matzehuels/starmark/pkg/starcache"
)

const (
	maxPageSize     = 8 << 20
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Runner   *pipeline.Runner
	Counters *observability.Counters
	Notices  *notify.Recorder
	Logger   *log.Logger

	// Client fetches upstream pages for GET /annotate.
	Client *http.Client

	// AllowHosts limits the hosts GET /annotate fetches from, redirects
	// included. A host also admits its subdomains and "*" admits any host.
	// Nil admits any host.
	AllowHosts []string
}

// Server serves annotated pages and the status API.
type Server struct {
	runner   *pipeline.Runner
	cache    *starcache.Cache
	counters *observability.Counters
	notices  *notify.Recorder
	client   *http.Client
	allow    []string
	logger   *log.Logger
	router   chi.Router
}

// New creates a Server. Runner is required.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	counters := opts.Counters
	if counters == nil {
		counters = observability.NewCounters()
	}
	notices := opts.Notices
	if notices == nil {
		notices = &notify.Recorder{}
	}
	s := &Server{
		runner:   opts.Runner,
		cache:    opts.Runner.Cache,
		counters: counters,
		notices:  notices,
		allow:    opts.AllowHosts,
		logger:   logger,
	}
	s.client = s.restrictRedirects(client)
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Get("/annotate", s.handleAnnotateURL)
	r.Post("/annotate", s.handleAnnotateBody)

	r.Get("/stars/{owner}/{name}", s.handleStars)

	r.Get("/status/{owner}/{name}", s.handleGetStatus)
	r.Put("/status/{owner}/{name}", s.handleSetStatus)
	r.Post("/status/{owner}/{name}/cycle", s.handleCycle)

	r.Get("/debug/cache", s.handleInspect)
	r.Delete("/debug/cache", s.handleClear)
	r.Get("/debug/stats", s.handleStats)
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready <- ln.Addr().String()
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", "http://"+ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
