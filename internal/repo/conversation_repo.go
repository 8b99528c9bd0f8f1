package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// CreateConversation inserts c, generating a UUID when c.ID is empty.
func CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetConversation fetches a conversation by id, regardless of owner.
// Ownership is checked by the caller.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListConversations returns the owner's conversations, most recently
// updated first.
func ListConversations(ctx context.Context, db *gorm.DB, ownerUID string) ([]domain.Conversation, error) {
	out := []domain.Conversation{}
	err := db.WithContext(ctx).
		Where("owner_uid = ?", ownerUID).
		Order("updated_at desc, id desc").
		Find(&out).Error
	return out, err
}

// UpdateConversation applies p. It returns domain.ErrNotFound when no row
// matches id.
func UpdateConversation(ctx context.Context, db *gorm.DB, id string, p domain.ConversationPatch) error {
	updates := map[string]any{"updated_at": p.UpdatedAt}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.Summary != nil {
		updates["summary"] = *p.Summary
	}
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and its messages in one
// transaction.
func DeleteConversation(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *Store) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	return CreateConversation(ctx, s.DB, c)
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	return GetConversation(ctx, s.DB, id)
}

func (s *Store) ListConversations(ctx context.Context, ownerUID string) ([]domain.Conversation, error) {
	return ListConversations(ctx, s.DB, ownerUID)
}

func (s *Store) UpdateConversation(ctx context.Context, id string, p domain.ConversationPatch) error {
	return UpdateConversation(ctx, s.DB, id, p)
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return DeleteConversation(ctx, s.DB, id)
}
