package domain

import "time"

// ConversationPatch carries a partial conversation update. Nil fields are
// left untouched; UpdatedAt is always written.
type ConversationPatch struct {
	Title     *string
	Summary   *string
	UpdatedAt time.Time
}

// MessageFlags carries the client-side markers a user may persist on a
// message. Nil fields are left untouched.
type MessageFlags struct {
	Pinned *bool `json:"pinned"`
	Saved  *bool `json:"saved"`
}

// Empty reports whether the flags carry no change.
func (f MessageFlags) Empty() bool { return f.Pinned == nil && f.Saved == nil }
