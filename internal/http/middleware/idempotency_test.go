package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestGetIdempotencyKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("expected GetIdempotencyKey to be absent for non-string value")
	}
	c.Set(ctxKeyIdemKey, "k-1")
	if k, ok := GetIdempotencyKey(c); !ok || k != "k-1" {
		t.Fatalf("GetIdempotencyKey = %q, %v", k, ok)
	}
}

func TestIdempotencyValidator_NoHeader_NoLookupCalled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	lookupCalled := false
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		lookupCalled = true
		return false, nil
	}
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/api/conversations/:id/messages", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be present when header missing")
		}
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/conversations/c1/messages", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", w.Code)
	}
	if lookupCalled {
		t.Fatalf("lookup must not run without a header")
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := map[string]string{
		"space":    "a b",
		"slash":    "a/b",
		"too long": strings.Repeat("a", 9),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID())
			r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 8}, nil))
			r.POST("/x/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/x/c1", nil)
			req.Header.Set(HeaderIdempotencyKey, key)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["error"] != "Invalid Idempotency-Key" {
				t.Fatalf("unexpected body: %v", body)
			}
			if body["request_id"] == "" {
				t.Fatalf("expected request_id in envelope")
			}
		})
	}
}

func TestIdempotencyValidator_ReplayMarksBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var gotUser, gotConv, gotKey string
	lookup := func(_ context.Context, uid, conv, key string, now time.Time) (bool, error) {
		gotUser, gotConv, gotKey = uid, conv, key
		if now.Location() != time.UTC {
			t.Errorf("lookup time should be UTC")
		}
		return true, nil
	}
	r.Use(func(c *gin.Context) { c.Set(UserIDKey, "u1"); c.Next() })
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/api/conversations/:id/messages", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok || key != "abc-123" {
			t.Fatalf("key not stashed: %q", key)
		}
		if !IsRateBypass(c) {
			t.Fatalf("replay should bypass the rate limiter")
		}
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/c9/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", w.Code)
	}
	if gotUser != "u1" || gotConv != "c9" || gotKey != "abc-123" {
		t.Fatalf("lookup args = %q %q %q", gotUser, gotConv, gotKey)
	}
}

func TestIdempotencyValidator_LookupErrorDoesNotBlock(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		return false, errors.New("store down")
	}
	r.Use(IdempotencyValidator(IdempotencyOptions{Param: "conv"}, lookup))
	r.POST("/c/:conv", func(c *gin.Context) {
		if IsRateBypass(c) {
			t.Fatalf("failed lookup must not mark a replay")
		}
		if _, ok := GetIdempotencyKey(c); !ok {
			t.Fatalf("valid key should still be stashed")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/c/c1", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
}
