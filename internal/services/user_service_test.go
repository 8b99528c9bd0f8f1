package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/nemo-backend/internal/domain"
)

type fakeNotifier struct {
	token string
	n     Notification
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, token string, n Notification) (string, error) {
	f.token, f.n = token, n
	if f.err != nil {
		return "", f.err
	}
	return "projects/p/messages/1", nil
}

func TestUserService_EnsureUser_CreatesOnce(t *testing.T) {
	st := newStore(t)
	svc := NewUserService(st, nil)
	svc.Now = stepClock(t0)
	ctx := context.Background()

	created, err := svc.EnsureUser(ctx, Identity{UID: "u1", Email: "a@b.c"})
	if err != nil || !created {
		t.Fatalf("first EnsureUser: created=%v err=%v", created, err)
	}
	created, err = svc.EnsureUser(ctx, Identity{UID: "u1", Name: "Other"})
	if err != nil || created {
		t.Fatalf("second EnsureUser: created=%v err=%v", created, err)
	}

	u, err := svc.Me(ctx, "u1")
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if u.Name != domain.DefaultUserName || u.Settings.Voice != domain.DefaultVoice || u.Settings.Personality != domain.DefaultPersonality {
		t.Fatalf("defaults not applied: %+v", u)
	}
	if !u.Settings.AutoMemory || u.Progression.Level != 1 {
		t.Fatalf("default settings/progression wrong: %+v", u)
	}
}

func TestUserService_Me_NotFound(t *testing.T) {
	svc := NewUserService(newStore(t), nil)
	if _, err := svc.Me(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestUserService_UpdateSettings_Replaces(t *testing.T) {
	st := newStore(t)
	seedUser(t, st, "u1")
	svc := NewUserService(st, nil)
	ctx := context.Background()

	want := domain.UserSettings{Voice: "Puck", Personality: "Coach", Theme: "light"}
	if err := svc.UpdateSettings(ctx, "u1", want); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	u, _ := svc.Me(ctx, "u1")
	if u.Settings != want {
		t.Fatalf("settings = %+v, want %+v", u.Settings, want)
	}
	if err := svc.UpdateSettings(ctx, "ghost", want); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestUserService_RegisterToken(t *testing.T) {
	st := newStore(t)
	seedUser(t, st, "u1")
	svc := NewUserService(st, nil)
	ctx := context.Background()

	if err := svc.RegisterToken(ctx, "u1", "   "); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("want ErrEmptyToken, got %v", err)
	}
	if err := svc.RegisterToken(ctx, "u1", " fcm-1 "); err != nil {
		t.Fatalf("RegisterToken: %v", err)
	}
	u, _ := svc.Me(ctx, "u1")
	if u.FCMToken != "fcm-1" {
		t.Fatalf("token = %q", u.FCMToken)
	}
}

func TestUserService_SendTestNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc := NewUserService(newStore(t), nil)
		if _, err := svc.SendTestNotification(ctx, "u1"); !errors.Is(err, ErrNotificationsDisabled) {
			t.Fatalf("want ErrNotificationsDisabled, got %v", err)
		}
	})

	t.Run("no token", func(t *testing.T) {
		st := newStore(t)
		seedUser(t, st, "u1")
		svc := NewUserService(st, &fakeNotifier{})
		if _, err := svc.SendTestNotification(ctx, "u1"); !errors.Is(err, ErrNoNotificationToken) {
			t.Fatalf("want ErrNoNotificationToken, got %v", err)
		}
	})

	t.Run("sends", func(t *testing.T) {
		st := newStore(t)
		seedUser(t, st, "u1")
		n := &fakeNotifier{}
		svc := NewUserService(st, n)
		_ = svc.RegisterToken(ctx, "u1", "fcm-1")
		id, err := svc.SendTestNotification(ctx, "u1")
		if err != nil || id == "" {
			t.Fatalf("send: id=%q err=%v", id, err)
		}
		if n.token != "fcm-1" || n.n.Title == "" {
			t.Fatalf("unexpected push: %+v", n)
		}
	})

	t.Run("stale token cleared", func(t *testing.T) {
		st := newStore(t)
		seedUser(t, st, "u1")
		svc := NewUserService(st, &fakeNotifier{err: ErrStaleToken})
		_ = svc.RegisterToken(ctx, "u1", "old")
		if _, err := svc.SendTestNotification(ctx, "u1"); !errors.Is(err, ErrNoNotificationToken) {
			t.Fatalf("want ErrNoNotificationToken, got %v", err)
		}
		u, _ := svc.Me(ctx, "u1")
		if u.FCMToken != "" {
			t.Fatalf("stale token kept: %q", u.FCMToken)
		}
	})
}

func TestUserService_DeleteAccount_Cascades(t *testing.T) {
	st := newStore(t)
	seedUser(t, st, "u1")
	ctx := context.Background()

	convs := NewConversationService(st)
	c, err := convs.Create(ctx, "u1", "hello", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	msgs := NewMessageService(st, 0)
	if _, _, err := msgs.Append(ctx, "u1", c.ID, NewMessage{Role: domain.RoleUser, Content: "hi"}, "k1"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	svc := NewUserService(st, nil)
	if err := svc.DeleteAccount(ctx, "u1"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := svc.Me(ctx, "u1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("user still present: %v", err)
	}
	if _, err := convs.Get(ctx, "u1", c.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("conversation still present: %v", err)
	}
	n, _ := st.CountMessages(ctx, c.ID, "")
	if n != 0 {
		t.Fatalf("orphan messages: %d", n)
	}
}
