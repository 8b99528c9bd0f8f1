// Package domain defines the persistence models for conversations, messages,
// memories and projects. The same types are mapped with GORM for the SQLite
// backend and with Firestore struct tags for the document store; JSON names
// follow the camelCase shape the web client reads.
package domain

import "time"

// Message roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// DefaultConversationTitle is used when a conversation is created without one.
const DefaultConversationTitle = "Nouvelle conversation"

// Conversation is a thread owned by exactly one user. LastMessage holds a
// truncated preview of the most recently appended message.
type Conversation struct {
	ID          string    `json:"id"          gorm:"type:varchar(64);primaryKey" firestore:"-"`
	OwnerUID    string    `json:"ownerUid"    gorm:"type:varchar(128);not null;index:idx_owner_updated,priority:1" firestore:"ownerUid"`
	Title       string    `json:"title"       gorm:"type:varchar(255);not null" firestore:"title"`
	Summary     string    `json:"summary"     gorm:"type:text" firestore:"summary"`
	LastMessage string    `json:"lastMessage" gorm:"type:text" firestore:"lastMessage"`
	CreatedAt   time.Time `json:"createdAt"   firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"   gorm:"index:idx_owner_updated,priority:2" firestore:"updatedAt"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// FileMeta describes a file attached to a message. The bytes themselves are
// not stored.
type FileMeta struct {
	Name string `json:"name" firestore:"name"`
	Type string `json:"type" firestore:"type"`
	Size int64  `json:"size" firestore:"size"`
}

// Message is a single entry in a conversation, authored by the user or the
// bot. Image carries a data URL or a storage URL. GroundingMetadata holds the
// search citations returned with a generated answer.
type Message struct {
	ID                string         `json:"id"                          gorm:"type:varchar(64);primaryKey" firestore:"-"`
	ConversationID    string         `json:"conversationId"              gorm:"type:varchar(64);not null;index:idx_conv_msgs,priority:1" firestore:"conversationId"`
	Role              string         `json:"role"                        gorm:"type:varchar(8);not null;check:role IN ('user','bot')" firestore:"role"`
	Content           string         `json:"content"                     gorm:"type:text;not null" firestore:"content"`
	Image             string         `json:"image,omitempty"             gorm:"type:text" firestore:"image,omitempty"`
	File              *FileMeta      `json:"file,omitempty"              gorm:"serializer:json" firestore:"file,omitempty"`
	GroundingMetadata map[string]any `json:"groundingMetadata,omitempty" gorm:"serializer:json" firestore:"groundingMetadata,omitempty"`
	Pinned            bool           `json:"pinned"                      firestore:"pinned"`
	Saved             bool           `json:"saved"                       firestore:"saved"`
	Timestamp         time.Time      `json:"timestamp"                   gorm:"index:idx_conv_msgs,priority:2" firestore:"timestamp"`

	// Conversation is the parent thread. Messages are cascade-deleted
	// with it.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" firestore:"-"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Memory is a free-form note saved by the user.
type Memory struct {
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey" firestore:"-"`
	UserID    string    `json:"-"         gorm:"type:varchar(128);not null;index:idx_user_memories,priority:1" firestore:"-"`
	Content   string    `json:"content"   gorm:"type:text;not null" firestore:"content"`
	Category  string    `json:"category"  gorm:"type:varchar(64)" firestore:"category"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_user_memories,priority:2" firestore:"createdAt"`
}

// TableName returns the database table name for Memory.
func (Memory) TableName() string { return "memories" }

// Project groups the user's work under a name.
type Project struct {
	ID          string    `json:"id"          gorm:"type:varchar(64);primaryKey" firestore:"-"`
	UserID      string    `json:"-"           gorm:"type:varchar(128);not null;index:idx_user_projects,priority:1" firestore:"-"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null" firestore:"name"`
	Description string    `json:"description" gorm:"type:text" firestore:"description"`
	CreatedAt   time.Time `json:"createdAt"   firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"   gorm:"index:idx_user_projects,priority:2" firestore:"updatedAt"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string { return "projects" }
