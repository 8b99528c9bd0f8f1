package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// idempotencyID derives a stable document id so lookups need no query.
func idempotencyID(userID, conversationID, key string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + conversationID + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

func (s *Store) GetIdempotency(ctx context.Context, userID, conversationID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, domain.ErrNotFound
	}
	id := idempotencyID(userID, conversationID, key)
	snap, err := s.client.Collection(colIdempotency).Doc(id).Get(ctx)
	if err != nil {
		return nil, wrap(err, "failed to get idempotency record", "key", key)
	}
	var rec domain.Idempotency
	if err := snap.DataTo(&rec); err != nil {
		return nil, wrap(err, "failed to decode idempotency record", "key", key)
	}
	if !rec.ExpiresAt.After(now) {
		return nil, domain.ErrNotFound
	}
	rec.ID = id
	return &rec, nil
}

// CreateIdempotency replaces an expired record but refuses a live one.
func (s *Store) CreateIdempotency(ctx context.Context, rec *domain.Idempotency) error {
	ref := s.idempotencyRef(rec)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := checkKey(tx, ref, rec.CreatedAt); err != nil {
			return err
		}
		return tx.Set(ref, rec)
	})
	return wrapIdempotency(err, rec.Key)
}

// AppendMessageOnce writes the message, touches its parent and records the
// key in one transaction. A live record for the key yields
// domain.ErrDuplicate and nothing is written.
func (s *Store) AppendMessageOnce(ctx context.Context, m *domain.Message, preview string, rec *domain.Idempotency) error {
	parent := s.conversationRef(m.ConversationID)
	msgRef := s.messageRef(m)
	idemRef := s.idempotencyRef(rec)
	rec.MessageID = msgRef.ID

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(parent); err != nil {
			return err
		}
		if err := checkKey(tx, idemRef, rec.CreatedAt); err != nil {
			return err
		}
		if err := tx.Create(msgRef, m); err != nil {
			return err
		}
		if err := tx.Set(idemRef, rec); err != nil {
			return err
		}
		return tx.Update(parent, touch(m, preview))
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.ErrDuplicate
		}
		return wrap(err, "failed to append message", "conversation", m.ConversationID)
	}
	m.ID = msgRef.ID
	return nil
}

func (s *Store) idempotencyRef(rec *domain.Idempotency) *firestore.DocumentRef {
	rec.ID = idempotencyID(rec.UserID, rec.ConversationID, rec.Key)
	return s.client.Collection(colIdempotency).Doc(rec.ID)
}

// checkKey fails with domain.ErrDuplicate when ref holds a record still live
// at now. It only reads, so callers may write afterwards.
func checkKey(tx *firestore.Transaction, ref *firestore.DocumentRef, now time.Time) error {
	snap, err := tx.Get(ref)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var cur domain.Idempotency
	if err := snap.DataTo(&cur); err != nil {
		return err
	}
	if cur.ExpiresAt.After(now) {
		return domain.ErrDuplicate
	}
	return nil
}

func wrapIdempotency(err error, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrDuplicate) {
		return domain.ErrDuplicate
	}
	return wrap(err, "failed to create idempotency record", "key", key)
}
