package docstore

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/tbourn/nemo-backend/internal/domain"
)

func (s *Store) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	col := s.client.Collection(colConversations)
	ref := col.NewDoc()
	if c.ID != "" {
		ref = col.Doc(c.ID)
	}
	if _, err := ref.Create(ctx, c); err != nil {
		return wrap(err, "failed to create conversation", "owner", c.OwnerUID)
	}
	c.ID = ref.ID
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	snap, err := s.conversationRef(id).Get(ctx)
	if err != nil {
		return nil, wrap(err, "failed to get conversation", "conversation", id)
	}
	return decodeConversation(snap)
}

func decodeConversation(snap *firestore.DocumentSnapshot) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := snap.DataTo(&c); err != nil {
		return nil, wrap(err, "failed to decode conversation", "conversation", snap.Ref.ID)
	}
	c.ID = snap.Ref.ID
	return &c, nil
}

// ListConversations needs the composite index (ownerUid ASC, updatedAt DESC).
func (s *Store) ListConversations(ctx context.Context, ownerUID string) ([]domain.Conversation, error) {
	snaps, err := s.client.Collection(colConversations).
		Where("ownerUid", "==", ownerUID).
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap(err, "failed to list conversations", "owner", ownerUID)
	}
	out := make([]domain.Conversation, 0, len(snaps))
	for _, snap := range snaps {
		c, err := decodeConversation(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *Store) UpdateConversation(ctx context.Context, id string, p domain.ConversationPatch) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: p.UpdatedAt}}
	if p.Title != nil {
		updates = append(updates, firestore.Update{Path: "title", Value: *p.Title})
	}
	if p.Summary != nil {
		updates = append(updates, firestore.Update{Path: "summary", Value: *p.Summary})
	}
	_, err := s.conversationRef(id).Update(ctx, updates)
	return wrap(err, "failed to update conversation", "conversation", id)
}

// DeleteConversation deletes every message first, then the conversation.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	ref := s.conversationRef(id)
	if _, err := ref.Get(ctx); err != nil {
		return wrap(err, "failed to get conversation", "conversation", id)
	}
	msgs, err := collectRefs(ctx, s.messages(id).Query)
	if err != nil {
		return wrap(err, "failed to list messages", "conversation", id)
	}
	return s.deleteAll(ctx, append(msgs, ref))
}
