package docstore

import (
	"context"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/goerr/v2"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// AppendMessage writes the message and touches its parent in one
// transaction.
func (s *Store) AppendMessage(ctx context.Context, m *domain.Message, preview string) error {
	parent := s.conversationRef(m.ConversationID)
	ref := s.messageRef(m)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(parent); err != nil {
			return err
		}
		if err := tx.Create(ref, m); err != nil {
			return err
		}
		return tx.Update(parent, touch(m, preview))
	})
	if err != nil {
		return wrap(err, "failed to append message", "conversation", m.ConversationID)
	}
	m.ID = ref.ID
	return nil
}

// messageRef is the document m is written to, allocating an id when m has
// none.
func (s *Store) messageRef(m *domain.Message) *firestore.DocumentRef {
	col := s.messages(m.ConversationID)
	if m.ID != "" {
		return col.Doc(m.ID)
	}
	return col.NewDoc()
}

func touch(m *domain.Message, preview string) []firestore.Update {
	return []firestore.Update{
		{Path: "lastMessage", Value: preview},
		{Path: "updatedAt", Value: m.Timestamp},
	}
}

func (s *Store) GetMessage(ctx context.Context, conversationID, id string) (*domain.Message, error) {
	snap, err := s.messages(conversationID).Doc(id).Get(ctx)
	if err != nil {
		return nil, wrap(err, "failed to get message", "message", id)
	}
	return decodeMessage(snap)
}

func decodeMessage(snap *firestore.DocumentSnapshot) (*domain.Message, error) {
	var m domain.Message
	if err := snap.DataTo(&m); err != nil {
		return nil, wrap(err, "failed to decode message", "message", snap.Ref.ID)
	}
	m.ID = snap.Ref.ID
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	q := s.messages(conversationID).OrderBy("timestamp", firestore.Asc)
	if limit > 0 {
		q = q.LimitToLast(limit)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap(err, "failed to list messages", "conversation", conversationID)
	}
	out := make([]domain.Message, 0, len(snaps))
	for _, snap := range snaps {
		m, err := decodeMessage(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// CountMessages runs a server-side count aggregation.
func (s *Store) CountMessages(ctx context.Context, conversationID, role string) (int64, error) {
	q := s.messages(conversationID).Query
	if role != "" {
		q = q.Where("role", "==", role)
	}
	res, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, wrap(err, "failed to count messages", "conversation", conversationID)
	}
	v, ok := res["total"].(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("count aggregation returned no value", goerr.V("conversation", conversationID))
	}
	return v.GetIntegerValue(), nil
}

func (s *Store) UpdateMessageFlags(ctx context.Context, conversationID, id string, f domain.MessageFlags) error {
	var updates []firestore.Update
	if f.Pinned != nil {
		updates = append(updates, firestore.Update{Path: "pinned", Value: *f.Pinned})
	}
	if f.Saved != nil {
		updates = append(updates, firestore.Update{Path: "saved", Value: *f.Saved})
	}
	if len(updates) == 0 {
		return nil
	}
	_, err := s.messages(conversationID).Doc(id).Update(ctx, updates)
	return wrap(err, "failed to update message flags", "message", id)
}
