package handlers

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/tbourn/nemo-backend/internal/domain"
)

func TestAnalyzeProfile(t *testing.T) {
	env := newEnv(t)
	ck := env.login("ada")

	wrapped := map[string]any{"analysis": map[string]any{
		"level":       "intermédiaire",
		"memoryEntry": "Aime les exemples concrets",
		"weaknesses":  []string{"récursivité"},
		"goals":       []string{"réussir l'examen"},
		"progress":    3,
		"topic":       "Python",
	}}
	w := env.do(http.MethodPost, "/api/profile/analyze", wrapped, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	u := decode[domain.User](t, w)
	if u.Level != "intermédiaire" || u.Progress != 3 || u.LastTopic != "Python" {
		t.Fatalf("profile = %+v", u)
	}
	if !reflect.DeepEqual(u.MemoryEntries, []string{"Aime les exemples concrets"}) {
		t.Fatalf("memoryEntries = %v", u.MemoryEntries)
	}

	// the bare analysis object is accepted too
	w = env.do(http.MethodPost, "/api/profile/analyze", map[string]any{"weaknesses": []string{"récursivité", "pointeurs"}}, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("bare: %d %s", w.Code, w.Body.String())
	}
	u = decode[domain.User](t, w)
	if !reflect.DeepEqual(u.Weaknesses, []string{"récursivité", "pointeurs"}) {
		t.Fatalf("weaknesses = %v", u.Weaknesses)
	}
}

func TestAnalyzeProfile_Errors(t *testing.T) {
	env := newEnv(t)
	ck := env.login("ada")

	expectError(t, env.do(http.MethodPost, "/api/profile/analyze", "  ", ck),
		http.StatusBadRequest, ErrCodeBadRequest, "analysis required")
	expectError(t, env.do(http.MethodPost, "/api/profile/analyze", "{nope", ck),
		http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
	expectError(t, env.do(http.MethodPost, "/api/profile/analyze", map[string]any{"topic": "x"}, env.issue("ghost")),
		http.StatusNotFound, ErrCodeNotFound, "User not found")
}

func TestDeleteMemoryEntry(t *testing.T) {
	env := newEnv(t)
	ck := env.login("ada")
	for _, e := range []string{"a", "b", "c"} {
		env.do(http.MethodPost, "/api/profile/analyze", map[string]any{"memoryEntry": e}, ck)
	}

	w := env.do(http.MethodDelete, "/api/profile/memory/1", nil, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if u := decode[domain.User](t, w); !reflect.DeepEqual(u.MemoryEntries, []string{"a", "c"}) {
		t.Fatalf("entries = %v", u.MemoryEntries)
	}

	// out of range leaves the list alone
	w = env.do(http.MethodDelete, "/api/profile/memory/9", nil, ck)
	if u := decode[domain.User](t, w); w.Code != http.StatusOK || len(u.MemoryEntries) != 2 {
		t.Fatalf("out of range: %d %v", w.Code, u.MemoryEntries)
	}

	// so does a negative one
	w = env.do(http.MethodDelete, "/api/profile/memory/-1", nil, ck)
	if u := decode[domain.User](t, w); w.Code != http.StatusOK || !reflect.DeepEqual(u.MemoryEntries, []string{"a", "c"}) {
		t.Fatalf("negative index: %d %v", w.Code, u.MemoryEntries)
	}

	for _, bad := range []string{"abc", "1.5", "2x"} {
		expectError(t, env.do(http.MethodDelete, "/api/profile/memory/"+bad, nil, ck),
			http.StatusBadRequest, ErrCodeBadRequest, "Invalid index")
	}
}
