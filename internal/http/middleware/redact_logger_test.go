package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func lastLine(t *testing.T, out string) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("invalid log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) { c.Set(UserIDKey, "uid-9"); c.Next() })
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/api/conversations/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet,
		"/api/conversations/c1?email=ada@example.com&id=3f2b8c1e-4a5d-4e6f-8a7b-1c2d3e4f5a6b", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "__session=abc")
	req.Header.Set("X-Goog-Api-Key", "gk")
	req.Header.Set("X-Api-Key", "k")
	req.Header.Set("X-Contact", "call 555-123-4567")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leaked := range []string{"secret", "__session", "ada@example.com", "3f2b8c1e", `"gk"`} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log leaked %q:\n%s", leaked, out)
		}
	}
	m := lastLine(t, out)
	if m["level"] != "info" || m["message"] != "http_request" {
		t.Fatalf("unexpected access log: %v", m)
	}
	if m["path"] != "/api/conversations/:id" || m["user_id"] != "uid-9" {
		t.Fatalf("route template or uid missing: %v", m)
	}
	q, _ := m["query"].(string)
	if !strings.Contains(q, "[REDACTED:email]") || !strings.Contains(q, "[REDACTED:id]") {
		t.Fatalf("query not scrubbed: %q", q)
	}
	headers, _ := m["headers"].(map[string]any)
	for _, h := range []string{"Authorization", "Cookie", "X-Goog-Api-Key", "X-Api-Key"} {
		if headers[h] != "[REDACTED]" {
			t.Fatalf("header %s = %v; want masked", h, headers[h])
		}
	}
	if c, _ := headers["X-Contact"].(string); !strings.Contains(c, "[REDACTED:phone]") {
		t.Fatalf("phone not scrubbed: %q", c)
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name  string
		path  string
		level string
	}{
		{"client error", "/bad", "warn"},
		{"server error", "/fail", "error"},
		{"gin error", "/err", "error"},
		{"unmatched", "/missing", "warn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogger(t)
			r := gin.New()
			r.Use(RedactingLogger(RedactOptions{}))
			r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
			r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
			r.GET("/err", func(c *gin.Context) {
				_ = c.Error(http.ErrBodyNotAllowed)
				c.Status(http.StatusOK)
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

			m := lastLine(t, buf.String())
			if m["level"] != tc.level {
				t.Fatalf("level = %v; want %s", m["level"], tc.level)
			}
			if tc.path == "/missing" && m["path"] != "/missing" {
				t.Fatalf("unmatched routes log the raw path, got %v", m["path"])
			}
		})
	}
}

func TestRedactingLogger_ContextLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/ctx", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/ctx", nil)
	req.Header.Set(requestIDHeader, "rid-ctx")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"request_id":"rid-ctx","method":"GET","path":"/ctx","message":"from service"`) {
		t.Fatalf("request context logger missing fields:\n%s", buf.String())
	}
}

func TestRedact(t *testing.T) {
	if redact("") != "" {
		t.Fatalf("empty input")
	}
	if got := redact("write to bob@mail.io"); got != "write to [REDACTED:email]" {
		t.Fatalf("redact = %q", got)
	}
}

func TestRedactingLogger_TraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := gin.New()
	var want string
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "req")
		defer span.End()
		want = span.SpanContext().TraceID().String()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/t", nil))

	if m := lastLine(t, buf.String()); m["trace_id"] != want {
		t.Fatalf("trace_id = %v; want %s", m["trace_id"], want)
	}

	// no span, no field
	buf.Reset()
	r2 := gin.New()
	r2.Use(RedactingLogger(RedactOptions{}))
	r2.GET("/t", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r2.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/t", nil))
	if m := lastLine(t, buf.String()); m["trace_id"] != nil {
		t.Fatalf("unexpected trace_id %v", m["trace_id"])
	}
}
