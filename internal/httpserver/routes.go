package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.handle("/health", http.HandlerFunc(s.handleHealth))
	s.handle("/metrics", promhttp.Handler())

	limited := s.authLimiter.middleware
	s.handle("/auth/register", limited(http.HandlerFunc(s.handleRegister)))
	s.handle("/auth/login", limited(http.HandlerFunc(s.handleLogin)))
	s.handle("/auth/renew", limited(http.HandlerFunc(s.handleRenewToken)))

	authenticated := s.authMiddleware
	s.handle("/api/products", authenticated(http.HandlerFunc(s.handleProducts)))
	s.handle("/api/products/{id}", authenticated(http.HandlerFunc(s.handleProductByID)))
	s.handle("/api/orders", authenticated(http.HandlerFunc(s.handleOrders)))
	s.handle("/api/orders/{id}", authenticated(http.HandlerFunc(s.handleOrderByID)))
	s.handle("/api/orders/{id}/pay", authenticated(http.HandlerFunc(s.handlePayOrder)))
	s.handle("/api/orders/{id}/cancel", authenticated(http.HandlerFunc(s.handleCancelOrder)))
	s.handle("/users/change-password", authenticated(http.HandlerFunc(s.handleChangePassword)))
	s.handle("/users/me", authenticated(http.HandlerFunc(s.handleMe)))

	s.router.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "resource not found")
	}))
}

// handle registers h under pattern and labels the request metrics with it.
func (s *Server) handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setRoute(r.Context(), pattern)
		h.ServeHTTP(w, r)
	}))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
