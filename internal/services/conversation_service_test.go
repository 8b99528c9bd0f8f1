package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tbourn/nemo-backend/internal/domain"
)

func TestNormalizeAndClip(t *testing.T) {
	if got := normalizeTitle("  Hello \t\n  world  "); got != "Hello world" {
		t.Fatalf("normalizeTitle = %q", got)
	}
	s := &ConversationService{TitleMaxLen: 5}
	if got := s.clip("éèàùç-extra"); got != "éèàùç" {
		t.Fatalf("clip = %q", got)
	}
	s.TitleMaxLen = 0
	if got := s.clip("unchanged"); got != "unchanged" {
		t.Fatalf("clip with 0 = %q", got)
	}
}

func TestConversationService_CreateDefaultsAndClips(t *testing.T) {
	st := newStore(t)
	svc := NewConversationService(st)
	svc.Now = stepClock(t0)
	ctx := context.Background()

	c, err := svc.Create(ctx, "u1", "   ", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Title != domain.DefaultConversationTitle || c.ID == "" || c.OwnerUID != "u1" {
		t.Fatalf("unexpected conversation: %+v", c)
	}

	long, err := svc.Create(ctx, "u1", strings.Repeat("é", 200), "")
	if err != nil {
		t.Fatalf("Create long: %v", err)
	}
	if utf8.RuneCountInString(long.Title) != svc.TitleMaxLen {
		t.Fatalf("title not clipped: %d runes", utf8.RuneCountInString(long.Title))
	}
}

func TestConversationService_OwnershipAndFilter(t *testing.T) {
	st := newStore(t)
	svc := NewConversationService(st)
	svc.Now = stepClock(t0)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", "Recette de crêpes", "")
	b, _ := svc.Create(ctx, "u1", "Python", "")
	other, _ := svc.Create(ctx, "u2", "secret", "")

	list, err := svc.List(ctx, "u1", "")
	if err != nil || len(list) != 2 {
		t.Fatalf("List: %v %d", err, len(list))
	}
	if list[0].ID != b.ID {
		t.Fatalf("most recent first: got %s want %s", list[0].ID, b.ID)
	}

	filtered, _ := svc.List(ctx, "u1", "CREPES")
	if len(filtered) != 1 || filtered[0].ID != a.ID {
		t.Fatalf("filter: %+v", filtered)
	}

	if _, err := svc.Get(ctx, "u1", other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, "u1", "nope"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("want ErrConversationNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "u1", other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete foreign: %v", err)
	}
	title := "x"
	if err := svc.Update(ctx, "u1", other.ID, &title, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update foreign: %v", err)
	}
}

func TestConversationService_UpdateAdvancesUpdatedAt(t *testing.T) {
	st := newStore(t)
	svc := NewConversationService(st)
	svc.Now = stepClock(t0)
	ctx := context.Background()

	c, _ := svc.Create(ctx, "u1", "Old", "")
	title, summary := "  New   name ", "short"
	if err := svc.Update(ctx, "u1", c.ID, &title, &summary); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := svc.Get(ctx, "u1", c.ID)
	if got.Title != "New name" || got.Summary != "short" {
		t.Fatalf("unexpected: %+v", got)
	}
	if !got.UpdatedAt.After(c.UpdatedAt) {
		t.Fatalf("updatedAt not advanced: %v <= %v", got.UpdatedAt, c.UpdatedAt)
	}
}

func TestConversationService_DeleteRemovesMessages(t *testing.T) {
	st := newStore(t)
	convs := NewConversationService(st)
	msgs := NewMessageService(st, 0)
	ctx := context.Background()

	c, _ := convs.Create(ctx, "u1", "t", "")
	for i := 0; i < 3; i++ {
		if _, _, err := msgs.Append(ctx, "u1", c.ID, NewMessage{Role: domain.RoleUser, Content: "m"}, ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := convs.Delete(ctx, "u1", c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := st.CountMessages(ctx, c.ID, ""); n != 0 {
		t.Fatalf("orphans remain: %d", n)
	}
	if err := convs.Delete(ctx, "u1", c.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
