package services

import (
	"context"
	"time"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// UserRepo persists user profiles. Implementations return domain.ErrNotFound
// for a missing user.
type UserRepo interface {
	// GetUser loads the profile keyed by uid.
	GetUser(ctx context.Context, uid string) (*domain.User, error)

	// CreateUser writes a new profile, overwriting any concurrent first write.
	CreateUser(ctx context.Context, u *domain.User) error

	// UpdateSettings replaces the user's settings block.
	UpdateSettings(ctx context.Context, uid string, s domain.UserSettings, now time.Time) error

	// SetFCMToken stores the Cloud Messaging registration token.
	SetFCMToken(ctx context.Context, uid, token string, now time.Time) error

	// MutateUser loads the user inside a store transaction, applies fn and
	// writes the result back when fn reports a change. It returns the
	// profile as stored once the transaction commits.
	MutateUser(ctx context.Context, uid string, fn func(u *domain.User) (bool, error)) (*domain.User, error)

	// DeleteUserData removes the profile and everything the user owns:
	// conversations with their messages, memories, projects and
	// idempotency records.
	DeleteUserData(ctx context.Context, uid string) error
}

// ConversationRepo persists conversation headers.
type ConversationRepo interface {
	// CreateConversation inserts c, assigning an ID when empty.
	CreateConversation(ctx context.Context, c *domain.Conversation) error

	// GetConversation loads a conversation by id regardless of owner.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// ListConversations returns the owner's conversations, most recent first.
	ListConversations(ctx context.Context, ownerUID string) ([]domain.Conversation, error)

	// UpdateConversation applies a partial update.
	UpdateConversation(ctx context.Context, id string, p domain.ConversationPatch) error

	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(ctx context.Context, id string) error
}

// MessageRepo persists messages under a conversation.
type MessageRepo interface {
	// AppendMessage inserts m (assigning an ID when empty) and, atomically
	// with it, sets the parent's lastMessage to preview and updatedAt to
	// m.Timestamp.
	AppendMessage(ctx context.Context, m *domain.Message, preview string) error

	// GetMessage loads one message of a conversation.
	GetMessage(ctx context.Context, conversationID, id string) (*domain.Message, error)

	// ListMessages returns messages in timestamp order. A positive limit
	// keeps only the most recent ones, still in ascending order.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)

	// CountMessages counts messages with the given role, or all when role
	// is empty.
	CountMessages(ctx context.Context, conversationID, role string) (int64, error)

	// UpdateMessageFlags persists pinned/saved markers.
	UpdateMessageFlags(ctx context.Context, conversationID, id string, f domain.MessageFlags) error
}

// MemoryRepo persists the user's saved memories.
type MemoryRepo interface {
	ListMemories(ctx context.Context, uid string) ([]domain.Memory, error)
	CreateMemory(ctx context.Context, m *domain.Memory) error
	DeleteMemory(ctx context.Context, uid, id string) error
}

// ProjectRepo persists the user's projects.
type ProjectRepo interface {
	ListProjects(ctx context.Context, uid string) ([]domain.Project, error)
	CreateProject(ctx context.Context, p *domain.Project) error
}

// IdempotencyRepo stores the message produced for an Idempotency-Key.
type IdempotencyRepo interface {
	// GetIdempotency returns a non-expired record or domain.ErrNotFound.
	GetIdempotency(ctx context.Context, userID, conversationID, key string, now time.Time) (*domain.Idempotency, error)

	// CreateIdempotency inserts rec, replacing an expired record for the
	// same key. A live record yields domain.ErrDuplicate.
	CreateIdempotency(ctx context.Context, rec *domain.Idempotency) error

	// AppendMessageOnce is AppendMessage plus the record for rec's key in
	// the same transaction. It sets rec.MessageID to m's id. A live record
	// for the key yields domain.ErrDuplicate and nothing is written.
	AppendMessageOnce(ctx context.Context, m *domain.Message, preview string, rec *domain.Idempotency) error
}

// Store is the full persistence contract. Both the Firestore adapter and
// the SQLite repository implement it.
type Store interface {
	UserRepo
	ConversationRepo
	MessageRepo
	MemoryRepo
	ProjectRepo
	IdempotencyRepo
}
