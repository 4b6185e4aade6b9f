package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(mw...)
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	engine.GET("/api/files", ok)
	engine.GET("/api/events", ok)
	engine.GET("/health", ok)
	engine.GET("/metrics", OnlyAllowLocal, ok)
	return engine
}

func do(engine *gin.Engine, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAllowAllCORS(t *testing.T) {
	engine := newTestEngine(AllowAllCORS())

	w := do(engine, http.MethodOptions, "/api/upload", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing allow-origin on preflight")
	}

	w = do(engine, http.MethodGet, "/api/files", "")
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("unexpected response %d %v", w.Code, w.Header())
	}
}

func TestSecureHeaders(t *testing.T) {
	w := do(newTestEngine(SecureHeaders()), http.MethodGet, "/api/files", "")
	for _, h := range []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"X-XSS-Protection",
		"Referrer-Policy",
		"Permissions-Policy",
	} {
		if w.Header().Get(h) == "" {
			t.Errorf("expected %s header to be set", h)
		}
	}
}

func TestRateLimit(t *testing.T) {
	engine := newTestEngine(RateLimit(3))

	for i := 0; i < 3; i++ {
		if w := do(engine, http.MethodGet, "/api/files", "10.0.0.1:5000"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := do(engine, http.MethodGet, "/api/files", "10.0.0.1:5000"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	// other clients have their own budget
	if w := do(engine, http.MethodGet, "/api/files", "10.0.0.2:5000"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for second client, got %d", w.Code)
	}
	// exempt paths
	for _, path := range []string{"/api/events", "/health"} {
		if w := do(engine, http.MethodGet, path, "10.0.0.1:5000"); w.Code != http.StatusOK {
			t.Fatalf("%s should be exempt, got %d", path, w.Code)
		}
	}
}

func TestRateLimitDisabled(t *testing.T) {
	engine := newTestEngine(RateLimit(-1))
	for i := 0; i < 50; i++ {
		if w := do(engine, http.MethodGet, "/api/files", "10.0.0.1:5000"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestOnlyAllowLocal(t *testing.T) {
	engine := newTestEngine()
	if w := do(engine, http.MethodGet, "/metrics", "192.168.1.20:4000"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for remote client, got %d", w.Code)
	}
	if w := do(engine, http.MethodGet, "/metrics", "127.0.0.1:4000"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for local client, got %d", w.Code)
	}
}

func TestAccessLogPassesThrough(t *testing.T) {
	engine := newTestEngine(AccessLog())
	if w := do(engine, http.MethodGet, "/api/files", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(engine, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
