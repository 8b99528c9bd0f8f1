// Package services – UserService
//
// This file implements UserService, which owns the profile lifecycle: the
// default document created on first login, settings, Cloud Messaging
// registration and the account-deletion cascade.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// Identity is the verified caller as reported by the identity provider.
type Identity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

// Notification is a push message addressed to one device.
type Notification struct {
	Title string
	Body  string
}

// Notifier delivers push notifications to a registration token.
type Notifier interface {
	Notify(ctx context.Context, token string, n Notification) (string, error)
}

// ErrStaleToken is returned by a Notifier when the registration token is no
// longer valid. UserService clears the stored token in that case.
var ErrStaleToken = errors.New("notification token is no longer registered")

// ErrNotificationsDisabled is returned when no Notifier is configured.
var ErrNotificationsDisabled = errors.New("notifications are not configured")

// UserService manages user profiles.
type UserService struct {
	Users    UserRepo
	Notifier Notifier

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(users UserRepo, n Notifier) *UserService {
	return &UserService{Users: users, Notifier: n}
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EnsureUser creates the default profile when none exists and reports
// whether it did. The existence check and the write are not atomic; two
// concurrent first logins write identical defaults.
func (s *UserService) EnsureUser(ctx context.Context, id Identity) (bool, error) {
	_, err := s.Users.GetUser(ctx, id.UID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	u := domain.NewUser(id.UID, id.Email, id.Name, id.Picture, s.now())
	if err := s.Users.CreateUser(ctx, u); err != nil {
		return false, err
	}
	return true, nil
}

// Me returns the caller's profile.
func (s *UserService) Me(ctx context.Context, uid string) (*domain.User, error) {
	u, err := s.Users.GetUser(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// UpdateSettings replaces the settings block.
func (s *UserService) UpdateSettings(ctx context.Context, uid string, settings domain.UserSettings) error {
	err := s.Users.UpdateSettings(ctx, uid, settings, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// RegisterToken stores the device's Cloud Messaging token.
func (s *UserService) RegisterToken(ctx context.Context, uid, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	err := s.Users.SetFCMToken(ctx, uid, token, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// SendTestNotification pushes a fixed message to the registered device and
// returns the provider's message id. A stale token is cleared.
func (s *UserService) SendTestNotification(ctx context.Context, uid string) (string, error) {
	if s.Notifier == nil {
		return "", ErrNotificationsDisabled
	}
	u, err := s.Me(ctx, uid)
	if err != nil {
		return "", err
	}
	if u.FCMToken == "" {
		return "", ErrNoNotificationToken
	}
	id, err := s.Notifier.Notify(ctx, u.FCMToken, Notification{
		Title: "Nemo",
		Body:  "Les notifications sont activées.",
	})
	if errors.Is(err, ErrStaleToken) {
		if cerr := s.Users.SetFCMToken(ctx, uid, "", s.now()); cerr != nil {
			return "", cerr
		}
		return "", ErrNoNotificationToken
	}
	return id, err
}

// DeleteAccount removes the profile and everything the user owns.
func (s *UserService) DeleteAccount(ctx context.Context, uid string) error {
	return s.Users.DeleteUserData(ctx, uid)
}
