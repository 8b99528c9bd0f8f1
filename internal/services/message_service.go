// Package services – MessageService
//
// This file implements MessageService, which owns the message lifecycle:
// validation, ownership checks, appends that touch the parent conversation,
// Idempotency-Key replay and pinned/saved flags.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the conversation and user identifiers.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// PreviewRunes is the length of the lastMessage preview.
const PreviewRunes = 100

// MessageStore is the persistence needed by MessageService.
type MessageStore interface {
	ConversationRepo
	MessageRepo
	IdempotencyRepo
}

// NewMessage is the input of an append.
type NewMessage struct {
	Role              string
	Content           string
	Image             string
	File              *domain.FileMeta
	GroundingMetadata map[string]any
}

// MessageService coordinates message persistence.
type MessageService struct {
	Store MessageStore

	// MaxContentRunes rejects longer messages when positive.
	MaxContentRunes int

	// IdempotencyTTL is how long an Idempotency-Key is remembered.
	IdempotencyTTL time.Duration

	Now func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(store MessageStore, idemTTL time.Duration) *MessageService {
	return &MessageService{Store: store, IdempotencyTTL: idemTTL, MaxContentRunes: 100_000}
}

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func tracer() trace.Tracer { return otel.Tracer("services/MessageService") }

// List returns the conversation's messages in timestamp order. A positive
// limit keeps only the most recent ones.
func (s *MessageService) List(ctx context.Context, uid, conversationID string, limit int) ([]domain.Message, error) {
	ctx, span := tracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", uid),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if _, err := authorize(ctx, s.Store, uid, conversationID); err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}
	return s.Store.ListMessages(ctx, conversationID, limit)
}

// Append validates and stores a message, updating the parent's lastMessage
// and updatedAt atomically. When key is non-empty, a retried call returns
// the message stored by the first one and replayed is true.
func (s *MessageService) Append(ctx context.Context, uid, conversationID string, in NewMessage, key string) (msg *domain.Message, replayed bool, err error) {
	ctx, span := tracer().Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", uid),
			attribute.String("message.role", in.Role),
			attribute.Bool("idempotent", key != ""),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.validate(&in); err != nil {
		return nil, false, err
	}
	if _, err := authorize(ctx, s.Store, uid, conversationID); err != nil {
		return nil, false, err
	}

	key = strings.TrimSpace(key)
	now := s.now()
	if key != "" {
		if m, ok, err := s.replay(ctx, uid, conversationID, key, now); err != nil || ok {
			return m, ok, err
		}
	}

	m := &domain.Message{
		ID:                uuid.NewString(),
		ConversationID:    conversationID,
		Role:              in.Role,
		Content:           in.Content,
		Image:             in.Image,
		File:              in.File,
		GroundingMetadata: in.GroundingMetadata,
		Timestamp:         now,
	}
	if key == "" {
		if err := s.Store.AppendMessage(ctx, m, Preview(m)); err != nil {
			return nil, false, mapNotFound(err, ErrConversationNotFound)
		}
		return m, false, nil
	}

	rec := &domain.Idempotency{
		UserID:         uid,
		ConversationID: conversationID,
		Key:            key,
		Status:         http.StatusCreated,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl()),
	}
	err = s.Store.AppendMessageOnce(ctx, m, Preview(m), rec)
	if errors.Is(err, domain.ErrDuplicate) {
		// A concurrent request with the same key committed first.
		if m, ok, err := s.replay(ctx, uid, conversationID, key, now); err != nil || ok {
			return m, ok, err
		}
		return nil, false, ErrIdempotencyConflict
	}
	if err != nil {
		return nil, false, mapNotFound(err, ErrConversationNotFound)
	}
	return m, false, nil
}

func (s *MessageService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

func (s *MessageService) replay(ctx context.Context, uid, conversationID, key string, now time.Time) (*domain.Message, bool, error) {
	rec, err := s.Store.GetIdempotency(ctx, uid, conversationID, key, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m, err := s.Store.GetMessage(ctx, conversationID, rec.MessageID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, ErrIdempotencyConflict
	}
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (s *MessageService) validate(in *NewMessage) error {
	in.Role = strings.TrimSpace(in.Role)
	if in.Role != domain.RoleUser && in.Role != domain.RoleBot {
		return ErrInvalidRole
	}
	if strings.TrimSpace(in.Content) == "" && in.Image == "" {
		return ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(in.Content) > s.MaxContentRunes {
		return ErrTooLong
	}
	return nil
}

// SetFlags persists pinned/saved markers on one message.
func (s *MessageService) SetFlags(ctx context.Context, uid, conversationID, messageID string, f domain.MessageFlags) (*domain.Message, error) {
	ctx, span := tracer().Start(ctx, "SetFlags",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("message.id", messageID),
		),
	)
	defer span.End()

	if f.Empty() {
		return nil, ErrNoFlags
	}
	if _, err := authorize(ctx, s.Store, uid, conversationID); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateMessageFlags(ctx, conversationID, messageID, f); err != nil {
		return nil, mapNotFound(err, ErrMessageNotFound)
	}
	m, err := s.Store.GetMessage(ctx, conversationID, messageID)
	return m, mapNotFound(err, ErrMessageNotFound)
}

// Preview is the lastMessage text stored on the parent conversation.
func Preview(m *domain.Message) string {
	text := strings.TrimSpace(m.Content)
	if text == "" && m.Image != "" {
		return "Image"
	}
	return clipRunes(text, PreviewRunes)
}

// Count returns the number of messages with role in the conversation, or all
// of them when role is empty.
func (s *MessageService) Count(ctx context.Context, uid, conversationID, role string) (int64, error) {
	if _, err := authorize(ctx, s.Store, uid, conversationID); err != nil {
		return 0, err
	}
	return s.Store.CountMessages(ctx, conversationID, role)
}
