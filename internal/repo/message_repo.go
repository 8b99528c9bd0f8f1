package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// AppendMessage inserts m and touches the parent conversation's
// last_message and updated_at in the same transaction. It returns
// domain.ErrNotFound, writing nothing, when the parent is missing.
func AppendMessage(ctx context.Context, db *gorm.DB, m *domain.Message, preview string) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendMessage(tx, m, preview)
	})
}

func appendMessage(tx *gorm.DB, m *domain.Message, preview string) error {
	res := tx.Model(&domain.Conversation{}).
		Where("id = ?", m.ConversationID).
		Updates(map[string]any{"last_message": preview, "updated_at": m.Timestamp})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return tx.Create(m).Error
}

// GetMessage fetches one message of a conversation.
func GetMessage(ctx context.Context, db *gorm.DB, conversationID, id string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("id = ? AND conversation_id = ?", id, conversationID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMessages returns messages ordered deterministically (timestamp ASC,
// id ASC). A positive limit keeps the most recent limit messages.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	q := db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if limit <= 0 {
		err := q.Order("timestamp ASC, id ASC").Find(&out).Error
		return out, err
	}
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages counts messages of a conversation, optionally by role.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID, role string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	err := q.Count(&total).Error
	return total, err
}

// UpdateMessageFlags writes the non-nil flags.
func UpdateMessageFlags(ctx context.Context, db *gorm.DB, conversationID, id string, f domain.MessageFlags) error {
	updates := map[string]any{}
	if f.Pinned != nil {
		updates["pinned"] = *f.Pinned
	}
	if f.Saved != nil {
		updates["saved"] = *f.Saved
	}
	if len(updates) == 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND conversation_id = ?", id, conversationID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, m *domain.Message, preview string) error {
	return AppendMessage(ctx, s.DB, m, preview)
}

func (s *Store) GetMessage(ctx context.Context, conversationID, id string) (*domain.Message, error) {
	return GetMessage(ctx, s.DB, conversationID, id)
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	return ListMessages(ctx, s.DB, conversationID, limit)
}

func (s *Store) CountMessages(ctx context.Context, conversationID, role string) (int64, error) {
	return CountMessages(ctx, s.DB, conversationID, role)
}

func (s *Store) UpdateMessageFlags(ctx context.Context, conversationID, id string, f domain.MessageFlags) error {
	return UpdateMessageFlags(ctx, s.DB, conversationID, id, f)
}
