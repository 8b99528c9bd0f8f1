package docstore

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/tbourn/nemo-backend/internal/domain"
)

func (s *Store) ListMemories(ctx context.Context, uid string) ([]domain.Memory, error) {
	snaps, err := s.userRef(uid).Collection(colMemories).
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap(err, "failed to list memories", "uid", uid)
	}
	out := make([]domain.Memory, 0, len(snaps))
	for _, snap := range snaps {
		var m domain.Memory
		if err := snap.DataTo(&m); err != nil {
			return nil, wrap(err, "failed to decode memory", "memory", snap.Ref.ID)
		}
		m.ID, m.UserID = snap.Ref.ID, uid
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) CreateMemory(ctx context.Context, m *domain.Memory) error {
	ref, _, err := s.userRef(m.UserID).Collection(colMemories).Add(ctx, m)
	if err != nil {
		return wrap(err, "failed to create memory", "uid", m.UserID)
	}
	m.ID = ref.ID
	return nil
}

func (s *Store) DeleteMemory(ctx context.Context, uid, id string) error {
	_, err := s.userRef(uid).Collection(colMemories).Doc(id).Delete(ctx)
	return wrap(err, "failed to delete memory", "memory", id)
}

func (s *Store) ListProjects(ctx context.Context, uid string) ([]domain.Project, error) {
	snaps, err := s.userRef(uid).Collection(colProjects).
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap(err, "failed to list projects", "uid", uid)
	}
	out := make([]domain.Project, 0, len(snaps))
	for _, snap := range snaps {
		var p domain.Project
		if err := snap.DataTo(&p); err != nil {
			return nil, wrap(err, "failed to decode project", "project", snap.Ref.ID)
		}
		p.ID, p.UserID = snap.Ref.ID, uid
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	ref, _, err := s.userRef(p.UserID).Collection(colProjects).Add(ctx, p)
	if err != nil {
		return wrap(err, "failed to create project", "uid", p.UserID)
	}
	p.ID = ref.ID
	return nil
}
