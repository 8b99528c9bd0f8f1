// Package services defines the business logic for users, profiles,
// conversations, messages and the user's library. This file centralizes the
// service-level error values so that handlers can map them to HTTP results
// with errors.Is.
package services

import "errors"

// User and profile errors.
var (
	// ErrUserNotFound indicates that no profile exists for the session uid.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmptyToken is returned when a notification token is blank.
	ErrEmptyToken = errors.New("token is empty")

	// ErrNoNotificationToken is returned when a push is requested for a user
	// who never registered a device.
	ErrNoNotificationToken = errors.New("no notification token registered")
)

// Conversation and message errors.
var (
	// ErrConversationNotFound indicates that the conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrForbidden indicates that the conversation belongs to another user.
	ErrForbidden = errors.New("forbidden")

	// ErrMessageNotFound indicates that the message does not exist in the
	// conversation.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidRole is returned when a message role is not user or bot.
	ErrInvalidRole = errors.New("role must be user or bot")

	// ErrEmptyContent is returned when a message has neither text nor image.
	ErrEmptyContent = errors.New("content is empty")

	// ErrTooLong is returned when a message exceeds the configured limit.
	ErrTooLong = errors.New("content too long")

	// ErrNoFlags is returned when a flag update carries nothing to change.
	ErrNoFlags = errors.New("no flags to update")

	// ErrIdempotencyConflict is returned when a concurrent request with the
	// same Idempotency-Key is still being processed.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)

// Library errors.
var (
	// ErrEmptyName is returned when a project or memory has no text.
	ErrEmptyName = errors.New("name is empty")

	// ErrMemoryNotFound indicates that the memory does not exist.
	ErrMemoryNotFound = errors.New("memory not found")
)
