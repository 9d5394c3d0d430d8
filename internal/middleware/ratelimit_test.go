package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubLimiter struct {
	allowed   bool
	remaining int
	lastKey   string
}

func (s *stubLimiter) Allow(_ *gin.Context, key string) (bool, int) {
	s.lastKey = key
	return s.allowed, s.remaining
}

func performRequest(limiter Limiter, orgID string) (*httptest.ResponseRecorder, bool) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	reached := false
	router.Use(func(c *gin.Context) {
		if orgID != "" {
			c.Set(OrganizationIDKey, orgID)
		}
	})
	router.Use(RateLimit(limiter))
	router.GET("/ping", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	return w, reached
}

// ---------------------------------------------------------------------------
// RateLimit middleware
// ---------------------------------------------------------------------------

func TestRateLimit_AllowedPassesThrough(t *testing.T) {
	limiter := &stubLimiter{allowed: true, remaining: 5}
	w, reached := performRequest(limiter, "org-1")

	if !reached {
		t.Error("handler not reached for an allowed request")
	}
	if w.Header().Get("X-RateLimit-Remaining") != "5" {
		t.Errorf("remaining header = %q, want 5", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_Rejects429WithRetryAfter(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	w, reached := performRequest(limiter, "org-1")

	if reached {
		t.Error("handler reached despite rejection")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
}

func TestRateLimit_KeyedByOrganizationThenIP(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	performRequest(limiter, "org-1")
	if limiter.lastKey != "org:org-1" {
		t.Errorf("key = %q, want org:org-1", limiter.lastKey)
	}

	performRequest(limiter, "")
	if len(limiter.lastKey) < 4 || limiter.lastKey[:3] != "ip:" {
		t.Errorf("unauthenticated key = %q, want ip: prefix", limiter.lastKey)
	}
}

// ---------------------------------------------------------------------------
// LocalLimiter
// ---------------------------------------------------------------------------

func TestLocalLimiter_ExhaustsBurst(t *testing.T) {
	limiter := NewLocalLimiter(3)
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		if allowed, _ := limiter.Allow(nil, "org:a"); !allowed {
			t.Fatalf("request %d rejected inside the burst", i+1)
		}
	}
	if allowed, remaining := limiter.Allow(nil, "org:a"); allowed {
		t.Errorf("request over the burst allowed, remaining %d", remaining)
	}
}

func TestLocalLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewLocalLimiter(1)
	defer limiter.Stop()

	if allowed, _ := limiter.Allow(nil, "org:a"); !allowed {
		t.Fatal("first request for org:a rejected")
	}
	if allowed, _ := limiter.Allow(nil, "org:a"); allowed {
		t.Error("second request for org:a allowed over a budget of 1")
	}
	if allowed, _ := limiter.Allow(nil, "org:b"); !allowed {
		t.Error("org:b rejected because of org:a's usage")
	}
}
