package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// GetIdempotency returns a non-expired record or domain.ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, conversationID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, domain.ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ? AND key = ? AND expires_at > ?", userID, conversationID, key, now).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// CreateIdempotency inserts rec, replacing an expired record for the same
// key. A live record yields domain.ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, rec *domain.Idempotency) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return claimKey(tx, rec)
	})
}

// AppendMessageOnce records the key and appends m in one transaction, so a
// message is never stored without its key or the reverse. A live record
// for the key yields domain.ErrDuplicate and nothing is written.
func AppendMessageOnce(ctx context.Context, db *gorm.DB, m *domain.Message, preview string, rec *domain.Idempotency) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	rec.MessageID = m.ID
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := claimKey(tx, rec); err != nil {
			return err
		}
		return appendMessage(tx, m, preview)
	})
}

// claimKey drops an expired record for rec's key, then inserts rec.
func claimKey(tx *gorm.DB, rec *domain.Idempotency) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := tx.Where("user_id = ? AND conversation_id = ? AND key = ? AND expires_at <= ?",
		rec.UserID, rec.ConversationID, rec.Key, rec.CreatedAt).
		Delete(&domain.Idempotency{}).Error
	if err != nil {
		return err
	}
	if err := tx.Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return err
	}
	return nil
}

// isUniqueViolation also matches the plain-text errors glebarez/sqlite
// returns for UNIQUE constraints.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") || strings.Contains(low, "constraint failed: unique")
}

func (s *Store) GetIdempotency(ctx context.Context, userID, conversationID, key string, now time.Time) (*domain.Idempotency, error) {
	return GetIdempotency(ctx, s.DB, userID, conversationID, key, now)
}

func (s *Store) CreateIdempotency(ctx context.Context, rec *domain.Idempotency) error {
	return CreateIdempotency(ctx, s.DB, rec)
}

func (s *Store) AppendMessageOnce(ctx context.Context, m *domain.Message, preview string, rec *domain.Idempotency) error {
	return AppendMessageOnce(ctx, s.DB, m, preview, rec)
}
