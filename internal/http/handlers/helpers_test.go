package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/nemo-backend/internal/assistant"
	"github.com/tbourn/nemo-backend/internal/auth"
	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/http/middleware"
	"github.com/tbourn/nemo-backend/internal/repo"
	"github.com/tbourn/nemo-backend/internal/services"
	"github.com/tbourn/nemo-backend/internal/session"
)

const cookieName = "session"

// ---------- fakes ----------

type fakeVerifier map[string]services.Identity

func (f fakeVerifier) Verify(_ context.Context, tok string) (services.Identity, error) {
	id, found := f[tok]
	if !found {
		return services.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

type fakeOAuth struct {
	codes map[string]services.Identity
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (services.Identity, error) {
	id, found := f.codes[code]
	if !found {
		return services.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, token string, _ services.Notification) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, token)
	return "projects/p/messages/1", nil
}

type stubAssistant struct {
	chat   func(uid string, req assistant.ChatRequest) (*assistant.Reply, error)
	image  func(uid string, req assistant.ImageRequest) (*assistant.Reply, error)
	speech func(text, voice string) (*assistant.Audio, error)
	voice  func(uid string, req assistant.VoiceRequest) (*assistant.VoiceReply, error)
}

func (s *stubAssistant) Chat(_ context.Context, uid string, req assistant.ChatRequest) (*assistant.Reply, error) {
	return s.chat(uid, req)
}

func (s *stubAssistant) Image(_ context.Context, uid string, req assistant.ImageRequest) (*assistant.Reply, error) {
	return s.image(uid, req)
}

func (s *stubAssistant) Speech(_ context.Context, text, voice string) (*assistant.Audio, error) {
	return s.speech(text, voice)
}

func (s *stubAssistant) Voice(_ context.Context, uid string, req assistant.VoiceRequest) (*assistant.VoiceReply, error) {
	return s.voice(uid, req)
}

// ---------- test environment ----------

type testEnv struct {
	t        *testing.T
	store    *repo.Store
	sessions *session.Manager
	notifier *fakeNotifier
	engine   *gin.Engine
	h        *Handlers
}

func newStore(t *testing.T) *repo.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repo.NewStore(db)
}

// newEnv mounts every handler on a fresh SQLite store. opts may adjust the
// dependencies before the routes are registered.
func newEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newStore(t)
	notifier := &fakeNotifier{}
	sessions := session.NewManager("handlers-test-secret", time.Hour, nil)
	clock := stepClock(time.Now().UTC().Truncate(time.Second))

	users := services.NewUserService(store, notifier)
	users.Now = clock
	conversations := services.NewConversationService(store)
	conversations.Now = clock
	messages := services.NewMessageService(store, time.Hour)
	messages.Now = clock
	profiles := services.NewProfileService(store)
	profiles.Now = clock
	library := services.NewLibraryService(store)
	library.Now = clock

	d := Deps{
		Verifier: fakeVerifier{
			"tok-ada": {UID: "ada", Email: "ada@example.com", Name: "Ada"},
			"tok-bob": {UID: "bob", Email: "bob@example.com"},
		},
		Sessions:      sessions,
		Cookie:        session.CookieOptions{Name: cookieName, Secure: true, SameSite: http.SameSiteNoneMode},
		Users:         users,
		Conversations: conversations,
		Messages:      messages,
		Profiles:      profiles,
		Library:       library,
	}
	for _, o := range opts {
		o(&d)
	}
	h := New(d)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api")
	api.POST("/login/firebase", h.Login)
	api.GET("/auth/url", h.AuthURL)
	r.GET("/auth/callback", h.AuthCallback)

	authed := api.Group("", middleware.SessionAuth(sessions, cookieName))
	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.PATCH("/settings", h.UpdateSettings)
	authed.POST("/notifications/token", h.RegisterToken)
	authed.POST("/notifications/test", h.TestNotification)
	authed.DELETE("/account", h.DeleteAccount)
	authed.POST("/profile/analyze", h.AnalyzeProfile)
	authed.DELETE("/profile/memory/:index", h.DeleteMemoryEntry)
	authed.GET("/conversations", h.ListConversations)
	authed.POST("/conversations", h.CreateConversation)
	authed.GET("/conversations/:id", h.GetConversation)
	authed.PATCH("/conversations/:id", h.UpdateConversation)
	authed.DELETE("/conversations/:id", h.DeleteConversation)
	authed.GET("/conversations/:id/messages", h.ListMessages)
	authed.POST("/conversations/:id/messages",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil), h.PostMessage)
	authed.PATCH("/conversations/:id/messages/:messageId", h.UpdateMessage)
	authed.GET("/memories", h.ListMemories)
	authed.POST("/memories", h.CreateMemory)
	authed.DELETE("/memories/:id", h.DeleteMemory)
	authed.GET("/projects", h.ListProjects)
	authed.POST("/projects", h.CreateProject)
	authed.POST("/chat", h.Chat)
	authed.POST("/images", h.GenerateImage)
	authed.POST("/speech", h.Speech)
	authed.POST("/voice", h.Voice)

	return &testEnv{t: t, store: store, sessions: sessions, notifier: notifier, engine: r, h: h}
}

// stepClock returns a clock advancing one second per call.
func stepClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

// login creates uid's profile and returns a valid session cookie.
func (e *testEnv) login(uid string) *http.Cookie {
	e.t.Helper()
	if err := e.store.CreateUser(context.Background(), domain.NewUser(uid, uid+"@example.com", "", "", time.Now().UTC())); err != nil {
		e.t.Fatalf("CreateUser: %v", err)
	}
	return e.issue(uid)
}

// issue returns a session cookie for uid without touching the store.
func (e *testEnv) issue(uid string) *http.Cookie {
	e.t.Helper()
	tok, _, err := e.sessions.Issue(uid)
	if err != nil {
		e.t.Fatalf("Issue: %v", err)
	}
	return &http.Cookie{Name: cookieName, Value: tok}
}

// do sends a request; body is JSON-encoded unless it is a string.
func (e *testEnv) do(method, path string, body any, cookie *http.Cookie, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, w.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code, msg string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, status, w.Body.String())
	}
	e := decode[ErrorResponse](t, w)
	if e.Code != code || (msg != "" && e.Error != msg) {
		t.Fatalf("error = %+v; want code %q msg %q", e, code, msg)
	}
}

func cookieFrom(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var errBoom = errors.New("boom")
