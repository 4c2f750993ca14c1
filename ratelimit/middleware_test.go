package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("ai_query window boundary", func(t *testing.T) {
		engine := gin.New()
		engine.POST("/query",
			Middleware(Rule{Limiter: NewLimiter(PolicyAIQuery), Key: ByUser}),
			func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

		for i := 0; i < PolicyAIQuery.Limit; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/query", nil)
			req.Header.Set("X-User-ID", "alice")
			engine.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected request %d to pass, got %d", i+1, w.Code)
			}
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/query", nil)
		req.Header.Set("X-User-ID", "alice")
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("Expected 429 on request %d, got %d", PolicyAIQuery.Limit+1, w.Code)
		}
		if w.Header().Get("Retry-After") == "" {
			t.Error("Expected Retry-After header")
		}
		if w.Header().Get("X-RateLimit-Remaining") != "0" {
			t.Errorf("Expected remaining 0, got %s", w.Header().Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("other subjects unaffected", func(t *testing.T) {
		engine := gin.New()
		limiter := NewLimiter(Policy{Name: "tiny", Window: PolicyAIQuery.Window, Limit: 1})
		engine.POST("/query",
			Middleware(Rule{Limiter: limiter, Key: ByUser}),
			func(c *gin.Context) { c.Status(http.StatusOK) })

		send := func(user string) int {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/query", nil)
			req.Header.Set("X-User-ID", user)
			engine.ServeHTTP(w, req)
			return w.Code
		}
		send("alice")
		if code := send("alice"); code != http.StatusTooManyRequests {
			t.Errorf("Expected alice rejected, got %d", code)
		}
		if code := send("bob"); code != http.StatusOK {
			t.Errorf("Expected bob admitted, got %d", code)
		}
	})
}
