package docstore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/tbourn/nemo-backend/internal/domain"
)

func (s *Store) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	snap, err := s.userRef(uid).Get(ctx)
	if err != nil {
		return nil, wrap(err, "failed to get user", "uid", uid)
	}
	return decodeUser(snap)
}

func decodeUser(snap *firestore.DocumentSnapshot) (*domain.User, error) {
	var u domain.User
	if err := snap.DataTo(&u); err != nil {
		return nil, wrap(err, "failed to decode user", "uid", snap.Ref.ID)
	}
	u.ID = snap.Ref.ID
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if _, err := s.userRef(u.ID).Set(ctx, u); err != nil {
		return wrap(err, "failed to create user", "uid", u.ID)
	}
	return nil
}

func (s *Store) UpdateSettings(ctx context.Context, uid string, settings domain.UserSettings, now time.Time) error {
	_, err := s.userRef(uid).Update(ctx, []firestore.Update{
		{Path: "userSettings", Value: settings},
		{Path: "updatedAt", Value: now},
	})
	return wrap(err, "failed to update settings", "uid", uid)
}

func (s *Store) SetFCMToken(ctx context.Context, uid, token string, now time.Time) error {
	_, err := s.userRef(uid).Update(ctx, []firestore.Update{
		{Path: "fcmToken", Value: token},
		{Path: "updatedAt", Value: now},
	})
	return wrap(err, "failed to store fcm token", "uid", uid)
}

// MutateUser runs fn inside a Firestore transaction. The transaction may be
// retried by the client, so fn must be free of side effects beyond u.
func (s *Store) MutateUser(ctx context.Context, uid string, fn func(*domain.User) (bool, error)) (*domain.User, error) {
	ref := s.userRef(uid)
	var out *domain.User
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		u, err := decodeUser(snap)
		if err != nil {
			return err
		}
		changed, err := fn(u)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Set(ref, u); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, wrap(err, "failed to update user in transaction", "uid", uid)
	}
	return out, nil
}

// DeleteUserData gathers every document owned by uid and deletes them with
// a bulk writer. The profile goes last so a partial failure can be retried.
func (s *Store) DeleteUserData(ctx context.Context, uid string) error {
	var refs []*firestore.DocumentRef

	convs, err := collectRefs(ctx, s.client.Collection(colConversations).Where("ownerUid", "==", uid))
	if err != nil {
		return wrap(err, "failed to list conversations", "uid", uid)
	}
	for _, c := range convs {
		msgs, err := collectRefs(ctx, c.Collection(colMessages).Query)
		if err != nil {
			return wrap(err, "failed to list messages", "conversation", c.ID)
		}
		refs = append(refs, msgs...)
	}
	refs = append(refs, convs...)

	for _, sub := range []string{colMemories, colProjects} {
		docs, err := collectRefs(ctx, s.userRef(uid).Collection(sub).Query)
		if err != nil {
			return wrap(err, "failed to list "+sub, "uid", uid)
		}
		refs = append(refs, docs...)
	}

	idem, err := collectRefs(ctx, s.client.Collection(colIdempotency).Where("userId", "==", uid))
	if err != nil {
		return wrap(err, "failed to list idempotency records", "uid", uid)
	}
	refs = append(refs, idem...)

	if err := s.deleteAll(ctx, refs); err != nil {
		return err
	}
	if _, err := s.userRef(uid).Delete(ctx); err != nil {
		return wrap(err, "failed to delete user", "uid", uid)
	}
	return nil
}
