package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/backoffice/internal/config"
	authusecase "storefront/backoffice/internal/usecase/auth"
	orderusecase "storefront/backoffice/internal/usecase/order"
	productusecase "storefront/backoffice/internal/usecase/product"

	"go.uber.org/zap"
)

// Services groups the use cases the HTTP layer dispatches to.
type Services struct {
	Auth     *authusecase.Service
	Products *productusecase.Service
	Orders   *orderusecase.Service
}

// Server wraps the HTTP server lifecycle.
type Server struct {
	httpServer     *http.Server
	router         *http.ServeMux
	authService    *authusecase.Service
	productService *productusecase.Service
	orderService   *orderusecase.Service
	authLimiter    *rateLimiter
	logger         *zap.Logger
	addr           string
}

// NewServer constructs a new Server with configured dependencies.
func NewServer(cfg config.Config, services Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	addr := cfg.HTTPPort
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ips := clientIPs{trusted: cfg.TrustedProxies}
	handler := withMetrics(withLogging(withCORS(mux, cfg.AllowedOrigins), logger, ips))

	srv := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
		},
		router:         mux,
		authService:    services.Auth,
		productService: services.Products,
		orderService:   services.Orders,
		authLimiter:    newRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst, cfg.AuthRateIdleTTL, ips),
		logger:         logger,
		addr:           addr,
	}
	srv.registerRoutes()
	return srv
}

// Start bootstraps the HTTP server on the provided address.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured network address for the HTTP server.
func (s *Server) Addr() string {
	return s.addr
}
