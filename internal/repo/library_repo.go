package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// ListMemories returns the user's memories, newest first.
func ListMemories(ctx context.Context, db *gorm.DB, uid string) ([]domain.Memory, error) {
	out := []domain.Memory{}
	err := db.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("created_at desc, id desc").
		Find(&out).Error
	return out, err
}

// CreateMemory inserts m, generating a UUID when m.ID is empty.
func CreateMemory(ctx context.Context, db *gorm.DB, m *domain.Memory) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(m).Error
}

// DeleteMemory removes one memory. Deleting a missing memory is not an error.
func DeleteMemory(ctx context.Context, db *gorm.DB, uid, id string) error {
	return db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, uid).
		Delete(&domain.Memory{}).Error
}

// ListProjects returns the user's projects, most recently updated first.
func ListProjects(ctx context.Context, db *gorm.DB, uid string) ([]domain.Project, error) {
	out := []domain.Project{}
	err := db.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("updated_at desc, id desc").
		Find(&out).Error
	return out, err
}

// CreateProject inserts p, generating a UUID when p.ID is empty.
func CreateProject(ctx context.Context, db *gorm.DB, p *domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(p).Error
}

func (s *Store) ListMemories(ctx context.Context, uid string) ([]domain.Memory, error) {
	return ListMemories(ctx, s.DB, uid)
}

func (s *Store) CreateMemory(ctx context.Context, m *domain.Memory) error {
	return CreateMemory(ctx, s.DB, m)
}

func (s *Store) DeleteMemory(ctx context.Context, uid, id string) error {
	return DeleteMemory(ctx, s.DB, uid, id)
}

func (s *Store) ListProjects(ctx context.Context, uid string) ([]domain.Project, error) {
	return ListProjects(ctx, s.DB, uid)
}

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	return CreateProject(ctx, s.DB, p)
}
