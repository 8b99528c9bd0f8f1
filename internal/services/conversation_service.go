// Package services – ConversationService
//
// This file implements ConversationService, which manages conversation
// headers. It normalizes and clips titles, enforces ownership (a
// conversation is only visible to its ownerUid) and filters listings.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/search"
)

// ConversationService provides conversation-level operations.
type ConversationService struct {
	Repo ConversationRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int

	Now func() time.Time
}

// NewConversationService constructs a ConversationService with default title
// handling.
func NewConversationService(r ConversationRepo) *ConversationService {
	return &ConversationService{Repo: r, TitleMaxLen: 80}
}

func (s *ConversationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create inserts a conversation owned by uid. A blank title falls back to
// domain.DefaultConversationTitle.
func (s *ConversationService) Create(ctx context.Context, uid, title, summary string) (*domain.Conversation, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	now := s.now()
	c := &domain.Conversation{
		OwnerUID:  uid,
		Title:     s.clip(title),
		Summary:   strings.TrimSpace(summary),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.CreateConversation(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns uid's conversations, most recently updated first. A non-empty
// query keeps those whose title or last message contains it, ignoring case
// and accents.
func (s *ConversationService) List(ctx context.Context, uid, query string) ([]domain.Conversation, error) {
	items, err := s.Repo.ListConversations(ctx, uid)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return items, nil
	}
	out := make([]domain.Conversation, 0, len(items))
	for _, c := range items {
		if search.Matches(query, c.Title, c.LastMessage) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get loads a conversation and checks that uid owns it.
func (s *ConversationService) Get(ctx context.Context, uid, id string) (*domain.Conversation, error) {
	return authorize(ctx, s.Repo, uid, id)
}

// Update renames and/or re-summarizes a conversation and advances its
// updatedAt.
func (s *ConversationService) Update(ctx context.Context, uid, id string, title, summary *string) error {
	if _, err := authorize(ctx, s.Repo, uid, id); err != nil {
		return err
	}
	p := domain.ConversationPatch{UpdatedAt: s.now()}
	if title != nil {
		t := normalizeTitle(*title)
		if t == "" {
			t = domain.DefaultConversationTitle
		}
		t = s.clip(t)
		p.Title = &t
	}
	if summary != nil {
		sum := strings.TrimSpace(*summary)
		p.Summary = &sum
	}
	return mapNotFound(s.Repo.UpdateConversation(ctx, id, p), ErrConversationNotFound)
}

// Delete removes the conversation and all of its messages.
func (s *ConversationService) Delete(ctx context.Context, uid, id string) error {
	if _, err := authorize(ctx, s.Repo, uid, id); err != nil {
		return err
	}
	return mapNotFound(s.Repo.DeleteConversation(ctx, id), ErrConversationNotFound)
}

// authorize enforces the ownership invariant shared by every conversation
// and message operation.
func authorize(ctx context.Context, r ConversationRepo, uid, id string) (*domain.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrConversationNotFound
	}
	c, err := r.GetConversation(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrConversationNotFound)
	}
	if c.OwnerUID != uid {
		return nil, ErrForbidden
	}
	return c, nil
}

func mapNotFound(err, target error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return target
	}
	return err
}

// clip truncates a title to the configured maximum rune length.
func (s *ConversationService) clip(title string) string {
	return clipRunes(title, s.TitleMaxLen)
}

func clipRunes(v string, n int) string {
	if n > 0 && utf8.RuneCountInString(v) > n {
		return string([]rune(v)[:n])
	}
	return v
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
