package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/assistant"
	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/http/middleware"
	"github.com/tbourn/nemo-backend/internal/services"
	"github.com/tbourn/nemo-backend/internal/session"
)

//
// Service contracts (context-aware)
//

// IdentityVerifier checks a Firebase ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (services.Identity, error)
}

// OAuthProvider runs the Google authorization-code flow.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (services.Identity, error)
}

// Sessions issues and revokes session tokens.
type Sessions interface {
	Issue(uid string) (string, *session.Session, error)
	Revoke(ctx context.Context, s *session.Session) error
}

// UserService owns profiles, settings and notifications.
type UserService interface {
	EnsureUser(ctx context.Context, id services.Identity) (bool, error)
	Me(ctx context.Context, uid string) (*domain.User, error)
	UpdateSettings(ctx context.Context, uid string, s domain.UserSettings) error
	RegisterToken(ctx context.Context, uid, token string) error
	SendTestNotification(ctx context.Context, uid string) (string, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// ConversationService owns conversation headers.
type ConversationService interface {
	Create(ctx context.Context, uid, title, summary string) (*domain.Conversation, error)
	List(ctx context.Context, uid, query string) ([]domain.Conversation, error)
	Get(ctx context.Context, uid, id string) (*domain.Conversation, error)
	Update(ctx context.Context, uid, id string, title, summary *string) error
	Delete(ctx context.Context, uid, id string) error
}

// MessageService owns messages.
type MessageService interface {
	List(ctx context.Context, uid, conversationID string, limit int) ([]domain.Message, error)
	Append(ctx context.Context, uid, conversationID string, in services.NewMessage, key string) (*domain.Message, bool, error)
	SetFlags(ctx context.Context, uid, conversationID, messageID string, f domain.MessageFlags) (*domain.Message, error)
}

// ProfileService merges analyses and edits memory entries.
type ProfileService interface {
	Analyze(ctx context.Context, uid string, a services.Analysis) (*domain.User, error)
	DeleteMemoryEntry(ctx context.Context, uid string, index int) (*domain.User, error)
}

// LibraryService owns saved memories and projects.
type LibraryService interface {
	Memories(ctx context.Context, uid string) ([]domain.Memory, error)
	AddMemory(ctx context.Context, uid, content, category string) (*domain.Memory, error)
	DeleteMemory(ctx context.Context, uid, id string) error
	Projects(ctx context.Context, uid string) ([]domain.Project, error)
	AddProject(ctx context.Context, uid, name, description string) (*domain.Project, error)
}

// Assistant runs Gemini turns.
type Assistant interface {
	Chat(ctx context.Context, uid string, req assistant.ChatRequest) (*assistant.Reply, error)
	Image(ctx context.Context, uid string, req assistant.ImageRequest) (*assistant.Reply, error)
	Speech(ctx context.Context, text, voice string) (*assistant.Audio, error)
	Voice(ctx context.Context, uid string, req assistant.VoiceRequest) (*assistant.VoiceReply, error)
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. Verifier, OAuth and Assistant are
// optional; routes depending on a missing one answer an error.
type Deps struct {
	Verifier      IdentityVerifier
	OAuth         OAuthProvider
	Sessions      Sessions
	Cookie        session.CookieOptions
	Users         UserService
	Conversations ConversationService
	Messages      MessageService
	Profiles      ProfileService
	Library       LibraryService
	Assistant     Assistant
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	Deps
}

// New constructs Handlers.
func New(d Deps) *Handlers {
	return &Handlers{Deps: d}
}

// userID is the uid set by SessionAuth.
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}
