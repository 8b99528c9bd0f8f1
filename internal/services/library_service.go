package services

import (
	"context"
	"strings"
	"time"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// LibraryStore is the persistence needed by LibraryService.
type LibraryStore interface {
	MemoryRepo
	ProjectRepo
}

// LibraryService manages the user's saved memories and projects.
type LibraryService struct {
	Repo LibraryStore
	Now  func() time.Time
}

// NewLibraryService constructs a LibraryService.
func NewLibraryService(r LibraryStore) *LibraryService {
	return &LibraryService{Repo: r}
}

func (s *LibraryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Memories lists the user's saved memories, newest first.
func (s *LibraryService) Memories(ctx context.Context, uid string) ([]domain.Memory, error) {
	return s.Repo.ListMemories(ctx, uid)
}

// AddMemory saves a trimmed memory under an optional category. Blank
// content yields ErrEmptyName.
func (s *LibraryService) AddMemory(ctx context.Context, uid, content, category string) (*domain.Memory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyName
	}
	m := &domain.Memory{
		UserID:    uid,
		Content:   content,
		Category:  strings.TrimSpace(category),
		CreatedAt: s.now(),
	}
	if err := s.Repo.CreateMemory(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMemory removes one of the user's memories. Memories of other users
// are left alone.
func (s *LibraryService) DeleteMemory(ctx context.Context, uid, id string) error {
	return mapNotFound(s.Repo.DeleteMemory(ctx, uid, id), ErrMemoryNotFound)
}

// Projects lists the user's projects, most recently updated first.
func (s *LibraryService) Projects(ctx context.Context, uid string) ([]domain.Project, error) {
	return s.Repo.ListProjects(ctx, uid)
}

// AddProject creates a project. The name is normalized like a conversation
// title and must not be blank.
func (s *LibraryService) AddProject(ctx context.Context, uid, name, description string) (*domain.Project, error) {
	name = normalizeTitle(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	now := s.now()
	p := &domain.Project{
		UserID:      uid,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
