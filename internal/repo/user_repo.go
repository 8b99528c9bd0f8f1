package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// GetUser fetches a profile by uid or returns domain.ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, uid string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", uid).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpsertUser inserts u, replacing every column when the row already exists.
func UpsertUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(u).Error
}

// MutateUser runs a read-modify-write of one profile inside a transaction.
// fn reports whether it changed the profile; unchanged profiles are not
// written back.
func MutateUser(ctx context.Context, db *gorm.DB, uid string, fn func(*domain.User) (bool, error)) (*domain.User, error) {
	var out *domain.User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := GetUser(ctx, tx, uid)
		if err != nil {
			return err
		}
		changed, err := fn(u)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Save(u).Error; err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUserData removes the profile and every row owned by uid in one
// transaction. Messages go with their conversations.
func DeleteUserData(ctx context.Context, db *gorm.DB, uid string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&domain.Conversation{}).Select("id").Where("owner_uid = ?", uid)
		steps := []struct {
			model any
			query string
			args  []any
		}{
			{&domain.Message{}, "conversation_id IN (?)", []any{owned}},
			{&domain.Conversation{}, "owner_uid = ?", []any{uid}},
			{&domain.Memory{}, "user_id = ?", []any{uid}},
			{&domain.Project{}, "user_id = ?", []any{uid}},
			{&domain.Idempotency{}, "user_id = ?", []any{uid}},
			{&domain.User{}, "id = ?", []any{uid}},
		}
		for _, s := range steps {
			if err := tx.Where(s.query, s.args...).Delete(s.model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	return GetUser(ctx, s.DB, uid)
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return UpsertUser(ctx, s.DB, u)
}

func (s *Store) UpdateSettings(ctx context.Context, uid string, settings domain.UserSettings, now time.Time) error {
	_, err := MutateUser(ctx, s.DB, uid, func(u *domain.User) (bool, error) {
		u.Settings = settings
		u.UpdatedAt = now
		return true, nil
	})
	return err
}

func (s *Store) SetFCMToken(ctx context.Context, uid, token string, now time.Time) error {
	_, err := MutateUser(ctx, s.DB, uid, func(u *domain.User) (bool, error) {
		u.FCMToken = token
		u.UpdatedAt = now
		return true, nil
	})
	return err
}

func (s *Store) MutateUser(ctx context.Context, uid string, fn func(*domain.User) (bool, error)) (*domain.User, error) {
	return MutateUser(ctx, s.DB, uid, fn)
}

func (s *Store) DeleteUserData(ctx context.Context, uid string) error {
	return DeleteUserData(ctx, s.DB, uid)
}
