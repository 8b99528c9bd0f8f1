package domain

import "time"

// Idempotency records the message produced for a given
// (user_id, conversation_id, key) so a retried append returns it instead of
// writing a duplicate.
type Idempotency struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey" firestore:"-"`
	UserID         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_conv_key,priority:1" firestore:"userId"`
	ConversationID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_conv_key,priority:2" firestore:"conversationId"`
	Key            string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_conv_key,priority:3" firestore:"key"`
	MessageID      string    `gorm:"type:TEXT NOT NULL" firestore:"messageId"`
	Status         int       `gorm:"type:INTEGER NOT NULL" firestore:"status"`
	CreatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime" firestore:"createdAt"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index" firestore:"expiresAt"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
