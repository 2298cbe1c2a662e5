package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	config "github.com/xilidan/transcript-relay/config/relay"
	"github.com/xilidan/transcript-relay/gateways/relay/clients/abacus"
	"github.com/xilidan/transcript-relay/gateways/relay/grpchealth"
	"github.com/xilidan/transcript-relay/gateways/relay/guard"
	"github.com/xilidan/transcript-relay/gateways/relay/handler"
	"github.com/xilidan/transcript-relay/pkg/gen"
	"github.com/xilidan/transcript-relay/pkg/ratelimit"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	limiter *ratelimit.FixedWindow
	handler handler.Handler
	router  http.Handler
}

func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay configuration: %w", err)
	}

	log.Debug("creating relay server",
		slog.Int("port", cfg.Port),
		slog.String("environment", cfg.Environment),
		slog.Bool("trust_proxy", cfg.TrustProxy))

	upstream := abacus.New(&cfg.Abacus, log)
	limiter := ratelimit.NewFixedWindow(cfg.RateLimit.Max, cfg.RateLimit.Window)
	h := handler.NewHandler(upstream, cfg.BodyLimit, log)

	s := &Server{
		cfg:     cfg,
		log:     log,
		limiter: limiter,
		handler: h,
	}
	s.router = s.routes(guard.NewRateLimit(limiter, cfg.RateLimit.Max, cfg.RateLimit.Window))

	log.Info("relay server created")
	return s, nil
}

func (s *Server) routes(limit *guard.RateLimit) http.Handler {
	policy := guard.NewOriginPolicy(s.cfg.CORS.AllowedOriginPrefix, s.cfg.IsDevelopment())

	router := chi.NewRouter()
	if s.cfg.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(requestContext(s.log, gen.RequestID()))
	router.Use(accessLog(s.log))
	router.Use(recoverer)
	router.Use(policy.Reject)
	router.Use(policy.CORS())

	router.NotFound(s.handler.NotFoundHandler)
	router.MethodNotAllowed(s.handler.MethodNotAllowedHandler)

	router.Get("/health", s.handler.HealthHandler)
	router.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(limit.Handler)
		apiRouter.Post("/process-transcript", s.handler.ProcessTranscriptHandler)
	})

	return router
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured ports and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on http port: %w", err)
	}

	var grpcLis net.Listener
	if s.cfg.GRPCHealthPort != 0 {
		grpcLis, err = net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.GRPCHealthPort))
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on grpc health port: %w", err)
		}
	}

	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve runs the HTTP server on httpLis and, when grpcLis is not nil, the gRPC
// health service. It returns after a graceful shutdown once ctx is done, or
// with the first server error.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      writeTimeout(s.cfg.Abacus.Timeout),
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.limiter.Run(sweepCtx, sweepInterval)

	serverErrors := make(chan error, 2)

	go func() {
		s.log.Info("proxy server running",
			slog.String("address", httpLis.Addr().String()),
			slog.String("environment", s.cfg.Environment))
		serverErrors <- srv.Serve(httpLis)
	}()

	var health *grpchealth.Server
	if grpcLis != nil {
		health = grpchealth.New(s.log)
		go func() {
			serverErrors <- health.Serve(grpcLis)
		}()
	}

	var serveErr error
	select {
	case err := <-serverErrors:
		s.log.Error("server error received", slog.String("error", err.Error()))
		serveErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.log.Info("closing server due to context cancellation")
	}

	if health != nil {
		health.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
		srv.Close()
		return errors.Join(serveErr, fmt.Errorf("failed to gracefully shutdown server: %w", err))
	}

	s.log.Info("server stopped cleanly")
	return serveErr
}

// writeTimeout leaves room for the upstream call. A zero upstream timeout
// disables the write deadline as well.
func writeTimeout(upstream time.Duration) time.Duration {
	if upstream <= 0 {
		return 0
	}
	return upstream + 30*time.Second
}
