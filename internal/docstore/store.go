// Package docstore implements the persistence contract on Cloud Firestore.
//
// Layout:
//
//	users/{uid}
//	users/{uid}/memories/{id}
//	users/{uid}/projects/{id}
//	conversations/{id}                (ownerUid)
//	conversations/{id}/messages/{id}
//	idempotency/{sha256(user|conversation|key)}
//
// Missing documents surface as domain.ErrNotFound; every other failure is
// wrapped with goerr and carries the identifiers involved.
package docstore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tbourn/nemo-backend/internal/domain"
)

const (
	colUsers         = "users"
	colMemories      = "memories"
	colProjects      = "projects"
	colConversations = "conversations"
	colMessages      = "messages"
	colIdempotency   = "idempotency"
)

// Store is the Firestore-backed store.
type Store struct {
	client *firestore.Client
}

// New wraps an initialised Firestore client.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) userRef(uid string) *firestore.DocumentRef {
	return s.client.Collection(colUsers).Doc(uid)
}

func (s *Store) conversationRef(id string) *firestore.DocumentRef {
	return s.client.Collection(colConversations).Doc(id)
}

func (s *Store) messages(conversationID string) *firestore.CollectionRef {
	return s.conversationRef(conversationID).Collection(colMessages)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// wrap maps NotFound to domain.ErrNotFound and wraps everything else.
func wrap(err error, msg, key string, val any) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) || errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return goerr.Wrap(err, msg, goerr.V(key, val))
}

// deleteAll removes refs through a BulkWriter and reports the first failure.
func (s *Store) deleteAll(ctx context.Context, refs []*firestore.DocumentRef) error {
	if len(refs) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue delete", goerr.V("path", ref.Path))
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for i, job := range jobs {
		if _, err := job.Results(); err != nil && !isNotFound(err) {
			return goerr.Wrap(err, "failed to delete document", goerr.V("path", refs[i].Path))
		}
	}
	return nil
}

// collectRefs lists every document reference of a query.
func collectRefs(ctx context.Context, q firestore.Query) ([]*firestore.DocumentRef, error) {
	snaps, err := q.Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(snaps))
	for _, snap := range snaps {
		refs = append(refs, snap.Ref)
	}
	return refs, nil
}
