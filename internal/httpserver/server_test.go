package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"storefront/backoffice/internal/config"
	productdomain "storefront/backoffice/internal/domain/product"
	"storefront/backoffice/internal/infrastructure/memory"
	"storefront/backoffice/internal/infrastructure/token"
	authusecase "storefront/backoffice/internal/usecase/auth"
	orderusecase "storefront/backoffice/internal/usecase/order"
	productusecase "storefront/backoffice/internal/usecase/product"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	products := memory.NewProductRepository(store)

	productService := productusecase.NewService(products)
	fixtures, err := productdomain.Fixtures()
	if err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}
	if _, err := productService.SeedIfEmpty(context.Background(), fixtures); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	services := Services{
		Auth: authusecase.NewService(memory.NewUserRepository(store),
			token.NewJWTManager("test-secret", time.Hour, "backoffice-test"),
			authusecase.WithBcryptCost(bcrypt.MinCost)),
		Products: productService,
		Orders: orderusecase.NewService(memory.NewOrderRepository(store), products,
			orderusecase.WithCatalog(productService),
			orderusecase.WithLogger(logger)),
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &testServer{t: t, handler: NewServer(cfg, services, logger).Handler()}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login() {
	ts.t.Helper()
	if rec := ts.do(http.MethodPost, "/auth/register", map[string]string{
		"email": "ops@example.com", "password": "s3cret", "name": "Ops",
	}); rec.Code != http.StatusCreated {
		ts.t.Fatalf("Expected 201 on register, got %d: %s", rec.Code, rec.Body)
	}
	rec := ts.do(http.MethodPost, "/auth/login", map[string]string{
		"email": "ops@example.com", "password": "s3cret",
	})
	if rec.Code != http.StatusOK {
		ts.t.Fatalf("Expected 200 on login, got %d: %s", rec.Code, rec.Body)
	}
	var body struct {
		Token string `json:"token"`
	}
	decode(ts.t, rec, &body)
	ts.token = body.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	if rec := ts.do(http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 on /health, got %d", rec.Code)
	}
	rec := ts.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("http_requests_total")) {
		t.Errorf("Expected metrics exposition, got %d", rec.Code)
	}
}

func TestServer_RequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	for _, path := range []string{"/api/products", "/api/orders", "/users/me"} {
		if rec := ts.do(http.MethodGet, path, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
	ts.token = "not-a-jwt"
	if rec := ts.do(http.MethodGet, "/api/products", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad token, got %d", rec.Code)
	}
}

func TestServer_ProductListing(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.login()

	tests := []struct {
		query     string
		rows      int
		total     int
		firstName string
	}{
		{"?search=&limit=10&page=1", 10, 15, "Desk Mat"},
		{"?search=hoodie", 1, 1, "Hoodie"},
		{"?sort=-price&limit=100", 15, 15, "Backpack"},
		{"?page=2&limit=100", 0, 15, ""},
		{"?page=abc&limit=xyz", 10, 15, "Desk Mat"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := ts.do(http.MethodGet, "/api/products"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			var page struct {
				Data  []productdomain.Product `json:"data"`
				Total int                     `json:"total"`
				Page  int                     `json:"page"`
				Limit int                     `json:"limit"`
			}
			decode(t, rec, &page)
			if page.Data == nil {
				t.Errorf("Expected data to encode as an array")
			}
			if len(page.Data) != tt.rows || page.Total != tt.total {
				t.Errorf("Expected %d rows of %d, got %d of %d", tt.rows, tt.total, len(page.Data), page.Total)
			}
			if tt.firstName != "" && page.Data[0].Name != tt.firstName {
				t.Errorf("Expected %s first, got %s", tt.firstName, page.Data[0].Name)
			}
		})
	}
}

func TestServer_ProductCRUD(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.login()

	rec := ts.do(http.MethodPost, "/api/products", map[string]any{
		"name": "Tote Bag", "sku": "SKU-TB-001", "price": 12000, "stock": 4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created productdomain.Product
	decode(t, rec, &created)

	if rec := ts.do(http.MethodPost, "/api/products", map[string]any{
		"name": "Other", "sku": "SKU-TB-001", "price": 1,
	}); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on duplicate sku, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/products", map[string]any{
		"name": "Broken", "sku": "SKU-BR-001", "price": -1,
	}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on negative price, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPatch, "/api/products/"+created.ID, map[string]any{"price": 15000})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on update, got %d: %s", rec.Code, rec.Body)
	}
	var updated productdomain.Product
	decode(t, rec, &updated)
	if updated.Price != 15000 || updated.Name != "Tote Bag" {
		t.Errorf("Expected partial update, got %+v", updated)
	}

	if rec := ts.do(http.MethodDelete, "/api/products/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/products/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/products/"+created.ID, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestServer_OrderLifecycle(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.login()

	rec := ts.do(http.MethodGet, "/api/products?search=hoodie", nil)
	var page struct {
		Data []productdomain.Product `json:"data"`
	}
	decode(t, rec, &page)
	hoodie := page.Data[0]

	rec = ts.do(http.MethodPost, "/api/orders", map[string]any{
		"items": []map[string]any{{"product_id": hoodie.ID, "qty": 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		Data struct {
			ID          string  `json:"id"`
			Status      string  `json:"status"`
			TotalAmount float64 `json:"total_amount"`
		} `json:"data"`
	}
	decode(t, rec, &created)
	if created.Data.Status != "NEW" || created.Data.TotalAmount != 2*hoodie.Price {
		t.Errorf("Unexpected order %+v", created.Data)
	}

	rec = ts.do(http.MethodGet, "/api/products/"+hoodie.ID, nil)
	var afterOrder productdomain.Product
	decode(t, rec, &afterOrder)
	if afterOrder.Stock != hoodie.Stock-2 {
		t.Errorf("Expected stock %d after order, got %d", hoodie.Stock-2, afterOrder.Stock)
	}

	orderPath := "/api/orders/" + created.Data.ID
	if rec := ts.do(http.MethodPost, orderPath+"/pay", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 on pay, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, orderPath+"/pay", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on second pay, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, orderPath+"/cancel", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 on cancel, got %d", rec.Code)
	}

	rec = ts.do(http.MethodGet, "/api/orders?status=cancelled", nil)
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decode(t, rec, &list)
	if len(list.Data) != 1 || list.Data[0].ID != created.Data.ID {
		t.Errorf("Expected the cancelled order in the filtered list, got %+v", list.Data)
	}

	if rec := ts.do(http.MethodPost, "/api/orders", map[string]any{
		"items": []map[string]any{{"product_id": hoodie.ID, "qty": hoodie.Stock + 1}},
	}); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on insufficient stock, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/orders", map[string]any{"items": []any{}}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on empty order, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/orders/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown order, got %d", rec.Code)
	}
}

func TestServer_MeAndChangePassword(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.login()

	rec := ts.do(http.MethodGet, "/users/me", nil)
	var me struct {
		User map[string]any `json:"user"`
	}
	decode(t, rec, &me)
	if me.User["email"] != "ops@example.com" {
		t.Errorf("Expected current user, got %v", me.User)
	}
	if _, leaked := me.User["password_hash"]; leaked {
		t.Errorf("Expected password hash to be hidden")
	}

	if rec := ts.do(http.MethodPost, "/users/change-password", map[string]string{
		"current_password": "wrong", "new_password": "n3xt",
	}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on wrong password, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/users/change-password", map[string]string{
		"current_password": "s3cret", "new_password": "n3xt",
	}); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d: %s", rec.Code, rec.Body)
	}

	rec = ts.do(http.MethodPost, "/auth/renew", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected renewed token, got %d", rec.Code)
	}
}

func TestServer_AuthRateLimit(t *testing.T) {
	ts := newTestServer(t, config.Config{AuthRatePerMinute: 1, AuthRateBurst: 2})

	var codes []int
	for i := 0; i < 3; i++ {
		rec := ts.do(http.MethodPost, "/auth/login", map[string]string{
			"email": fmt.Sprintf("user%d@example.com", i), "password": "x",
		})
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected two attempts then 429, got %v", codes)
	}
	if rec := ts.do(http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected non-auth routes to be unaffected, got %d", rec.Code)
	}
}

// loginFrom posts bad credentials from remoteAddr, optionally behind forwarded.
func (ts *testServer) loginFrom(remoteAddr, forwarded string) int {
	ts.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"nobody@example.com","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestServer_AuthRateLimitIgnoresUntrustedForwardedFor(t *testing.T) {
	ts := newTestServer(t, config.Config{AuthRatePerMinute: 1, AuthRateBurst: 2})

	var codes []int
	for i := 0; i < 10; i++ {
		codes = append(codes, ts.loginFrom("198.51.100.9:4000", fmt.Sprintf("203.0.113.%d", i+1)))
	}
	for i, code := range codes {
		want := http.StatusTooManyRequests
		if i < 2 {
			want = http.StatusUnauthorized
		}
		if code != want {
			t.Fatalf("Expected rotating X-Forwarded-For to share one bucket, got %v", codes)
		}
	}
}

func TestServer_AuthRateLimitBehindTrustedProxy(t *testing.T) {
	ts := newTestServer(t, config.Config{
		AuthRatePerMinute: 1,
		AuthRateBurst:     1,
		TrustedProxies:    []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	})

	if code := ts.loginFrom("10.1.2.3:5000", "203.0.113.5"); code != http.StatusUnauthorized {
		t.Fatalf("Expected first attempt through proxy to pass, got %d", code)
	}
	if code := ts.loginFrom("10.1.2.3:5000", "203.0.113.5"); code != http.StatusTooManyRequests {
		t.Errorf("Expected second attempt from the same client to be limited, got %d", code)
	}
	if code := ts.loginFrom("10.1.2.3:5000", "203.0.113.6"); code != http.StatusUnauthorized {
		t.Errorf("Expected another client behind the proxy to have its own bucket, got %d", code)
	}
	// A client prepending its own hop is still keyed on the address the proxy saw.
	if code := ts.loginFrom("10.1.2.3:5000", "1.1.1.1, 203.0.113.5"); code != http.StatusTooManyRequests {
		t.Errorf("Expected spoofed leading hop to be ignored, got %d", code)
	}
}

func TestClientIPs(t *testing.T) {
	trusted := clientIPs{trusted: []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.0.1/32"),
	}}

	tests := []struct {
		name      string
		ips       clientIPs
		remote    string
		forwarded string
		want      string
	}{
		{"no proxies configured", clientIPs{}, "198.51.100.9:4000", "203.0.113.5", "198.51.100.9"},
		{"untrusted peer", trusted, "198.51.100.9:4000", "203.0.113.5", "198.51.100.9"},
		{"trusted peer without header", trusted, "10.0.0.2:4000", "", "10.0.0.2"},
		{"trusted peer", trusted, "10.0.0.2:4000", "203.0.113.5", "203.0.113.5"},
		{"proxy chain", trusted, "10.0.0.2:4000", "1.1.1.1, 203.0.113.5, 192.168.0.1", "203.0.113.5"},
		{"garbage hop", trusted, "10.0.0.2:4000", "not-an-ip", "10.0.0.2"},
		{"all hops trusted", trusted, "10.0.0.2:4000", "10.9.9.9", "10.9.9.9"},
		{"ipv6 peer", clientIPs{}, "[2001:db8::1]:4000", "", "2001:db8::1"},
		{"bare remote", clientIPs{}, "pipe", "", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := tt.ips.of(req); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1, time.Minute, clientIPs{})
	rl.nowFunc = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		rl.get(fmt.Sprintf("203.0.113.%d", i)).Allow()
	}
	if got := rl.size(); got != 50 {
		t.Fatalf("Expected 50 buckets, got %d", got)
	}
	if rl.get("203.0.113.0").Allow() {
		t.Errorf("Expected the bucket to be reused while active")
	}

	now = now.Add(2 * time.Minute)
	rl.get("198.51.100.1")
	if got := rl.size(); got != 1 {
		t.Errorf("Expected idle buckets to be evicted, %d left", got)
	}
	if !rl.get("203.0.113.0").Allow() {
		t.Errorf("Expected an evicted client to start with a fresh bucket")
	}
}

func TestServer_CORSAndNotFound(t *testing.T) {
	ts := newTestServer(t, config.Config{AllowedOrigins: []string{"https://admin.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("Expected origin echoed, got %q", got)
	}

	rec = ts.do(http.MethodGet, "/nope", nil)
	var body errorResponse
	decode(t, rec, &body)
	if rec.Code != http.StatusNotFound || body.Error == "" {
		t.Errorf("Expected JSON 404, got %d %q", rec.Code, rec.Body)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"":               "",
		"Bearer abc":     "abc",
		"bearer  abc ":   "abc",
		"Basic Zm9vOmJh": "",
		"Bearer":         "",
	}
	for header, want := range tests {
		if got := extractBearerToken(header); got != want {
			t.Errorf("%q: expected %q, got %q", header, want, got)
		}
	}
}
