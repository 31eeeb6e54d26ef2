package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"coview/internal/config"
	"coview/internal/constants"
	"coview/internal/observability"
	"coview/internal/protocol"
	"coview/internal/relay"
	"coview/internal/security"
	"coview/internal/session"
)

type Server struct {
	Config      *config.Config
	Registry    *session.Registry
	Router      *relay.Router
	Sweeper     *relay.Sweeper
	JoinLimiter *security.JoinLimiter
	ConnLimiter *security.ConnectionLimiter
	Validator   *security.Validator
	Audit       *security.Audit
	Metrics     *observability.Metrics

	startedAt time.Time
}

func NewServer(cfg *config.Config) *Server {
	security.SetTrustedProxies(cfg.TrustedProxies)

	audit := security.NewAudit(cfg.AuditCapacity)
	registry := session.NewRegistry(cfg.SessionTTL, audit)
	limiter := security.NewJoinLimiter(cfg.JoinWindow, cfg.JoinMaxAttempts)
	validator := security.NewValidator(cfg.Secret, cfg.AllowedOrigins,
		cfg.OpsUser, cfg.OpsPassword, cfg.OpsPasswordHash)
	metrics := observability.New(func() float64 { return float64(registry.Len()) })

	return &Server{
		Config:      cfg,
		Registry:    registry,
		Router:      relay.NewRouter(registry, limiter, validator, audit, metrics),
		Sweeper:     relay.NewSweeper(registry, limiter, metrics, cfg.SweepInterval, cfg.LimiterGCInterval),
		JoinLimiter: limiter,
		ConnLimiter: security.NewConnectionLimiter(cfg.MaxConnsPerIP),
		Validator:   validator,
		Audit:       audit,
		Metrics:     metrics,
		startedAt:   time.Now(),
	}
}

// Run serves until SIGINT/SIGTERM, then drains: HTTP shutdown first, then
// the sweeper, then every live session ends with reason "shutdown".
func (s *Server) Run() {
	cfg := s.Config

	opsAuth := OperatorAuth(s.Validator)
	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointWebSocket, s.HandleWebSocket)
	mux.HandleFunc(constants.EndpointHealth, s.HandleHealth)
	mux.Handle(constants.EndpointStatus, opsAuth(http.HandlerFunc(s.HandleStatus)))
	mux.Handle(constants.EndpointMetrics, opsAuth(promhttp.HandlerFor(
		s.Metrics.Registry, promhttp.HandlerOpts{})))

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = CorsMiddleware(s.Validator)(handler)
	handler = security.SecurityHeaders(handler)

	useTLS := false
	if cfg.EnableTLS {
		if _, err := os.Stat(cfg.CertFile); err == nil {
			if _, err := os.Stat(cfg.KeyFile); err == nil {
				useTLS = true
			}
		}
		if !useTLS {
			logrus.Warnf("⚠️  TLS enabled but certs not found at %s", cfg.CertFile)
		}
	}

	var h2Handler http.Handler
	if useTLS {
		h2Handler = handler
	} else {
		h2Handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h2Handler,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.Sweeper.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTLS {
		logrus.Info("🔒 HTTPS enabled (HTTP/2)")
		go func() {
			if err := server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil && err != http.ErrServerClosed {
				logrus.Fatalf("HTTPS server error: %v", err)
			}
		}()
	} else {
		logrus.Info("🌐 HTTP mode (HTTP/2 enabled)")
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	logrus.Infof("🚀 coview server starting on :%s", cfg.Port)

	<-sigChan
	logrus.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Warnf("Server forced to shutdown: %v", err)
	}

	s.Cleanup()
	logrus.Info("✅ Server stopped")
}

func (s *Server) Cleanup() {
	s.Sweeper.Stop()
	s.Registry.Shutdown(protocol.ReasonShutdown)
}
