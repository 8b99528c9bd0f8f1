package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/nemo-backend/internal/domain"
)

func TestMemories(t *testing.T) {
	env := newEnv(t)
	ck := env.login("ada")

	if w := env.do(http.MethodGet, "/api/memories", nil, ck); w.Body.String() != "[]" {
		t.Fatalf("empty list = %q", w.Body.String())
	}

	first := decode[IDResponse](t, env.do(http.MethodPost, "/api/memories", MemoryRequest{Content: "Concours en juin", Category: "objectif"}, ck))
	second := decode[IDResponse](t, env.do(http.MethodPost, "/api/memories", MemoryRequest{Content: "Préfère le tutoiement"}, ck))
	if first.ID == "" || second.ID == "" || first.ID == second.ID {
		t.Fatalf("ids = %q %q", first.ID, second.ID)
	}

	list := decode[[]domain.Memory](t, env.do(http.MethodGet, "/api/memories", nil, ck))
	if len(list) != 2 || list[0].ID != second.ID || list[1].Category != "objectif" {
		t.Fatalf("list = %+v", list)
	}

	// another user sees nothing and cannot delete
	bob := env.login("bob")
	if got := decode[[]domain.Memory](t, env.do(http.MethodGet, "/api/memories", nil, bob)); len(got) != 0 {
		t.Fatalf("bob sees %v", got)
	}
	env.do(http.MethodDelete, "/api/memories/"+first.ID, nil, bob)

	if w := env.do(http.MethodDelete, "/api/memories/"+first.ID, nil, ck); w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	list = decode[[]domain.Memory](t, env.do(http.MethodGet, "/api/memories", nil, ck))
	if len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("after delete = %+v", list)
	}

	expectError(t, env.do(http.MethodPost, "/api/memories", MemoryRequest{Content: "  "}, ck),
		http.StatusBadRequest, ErrCodeBadRequest, "Name required")
}

func TestProjects(t *testing.T) {
	env := newEnv(t)
	ck := env.login("ada")

	id := decode[IDResponse](t, env.do(http.MethodPost, "/api/projects", ProjectRequest{Name: "  Portfolio  ", Description: "Site perso"}, ck)).ID
	list := decode[[]domain.Project](t, env.do(http.MethodGet, "/api/projects", nil, ck))
	if len(list) != 1 || list[0].ID != id || list[0].Name != "Portfolio" {
		t.Fatalf("projects = %+v", list)
	}

	expectError(t, env.do(http.MethodPost, "/api/projects", ProjectRequest{}, ck),
		http.StatusBadRequest, ErrCodeBadRequest, "Name required")
	expectError(t, env.do(http.MethodPost, "/api/projects", "[", ck),
		http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
}
