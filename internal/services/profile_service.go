// Package services – ProfileService
//
// This file implements the profile "analysis" merge and memory-entry
// deletion. Both are read-modify-write operations executed inside a store
// transaction so concurrent analyses of the same user do not lose updates.
package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// MaxProgressStep bounds the progress increment of a single analysis.
const MaxProgressStep = 5

// Analysis is an incremental profile update. Every field is optional.
type Analysis struct {
	ResetMemory bool     `json:"resetMemory,omitempty"`
	Level       string   `json:"level,omitempty"`
	MemoryEntry string   `json:"memoryEntry,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
	Strengths   []string `json:"strengths,omitempty"`
	Goals       []string `json:"goals,omitempty"`
	Progress    float64  `json:"progress,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Topic       string   `json:"topic,omitempty"`
}

// ProfileService applies analyses and edits memory entries.
type ProfileService struct {
	Users UserRepo
	Now   func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(users UserRepo) *ProfileService {
	return &ProfileService{Users: users}
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Analyze merges a into the user's profile and returns the stored result.
func (s *ProfileService) Analyze(ctx context.Context, uid string, a Analysis) (*domain.User, error) {
	now := s.now()
	u, err := s.Users.MutateUser(ctx, uid, func(u *domain.User) (bool, error) {
		applyAnalysis(u, a)
		u.UpdatedAt = now
		return true, nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// applyAnalysis performs the merge in a fixed order: reset, level, memory
// entry, list unions, progress, then summary and topic.
func applyAnalysis(u *domain.User, a Analysis) {
	if a.ResetMemory {
		u.MemoryEntries = []string{}
		u.ConversationSummary = ""
		u.LastTopic = ""
	}
	if lvl := strings.TrimSpace(a.Level); lvl != "" {
		u.Level = lvl
	}
	if e := strings.TrimSpace(a.MemoryEntry); e != "" {
		u.MemoryEntries = union(u.MemoryEntries, []string{e})
	}
	u.Weaknesses = union(u.Weaknesses, a.Weaknesses)
	u.Strengths = union(u.Strengths, a.Strengths)
	u.Goals = union(u.Goals, a.Goals)

	if step := clampStep(a.Progress); step > 0 {
		u.Progress = min(u.Progress+step, domain.MaxProgress)
	}
	if sum := strings.TrimSpace(a.Summary); sum != "" {
		u.ConversationSummary = sum
	}
	if topic := strings.TrimSpace(a.Topic); topic != "" {
		u.LastTopic = topic
	}
}

func clampStep(p float64) int {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	return int(math.Round(math.Min(p, MaxProgressStep)))
}

// union appends the non-blank items of add missing from dst, keeping order.
func union(dst, add []string) []string {
	if dst == nil {
		dst = []string{}
	}
	seen := make(map[string]struct{}, len(dst)+len(add))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range add {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// DeleteMemoryEntry removes the entry at index, keeping the order of the
// others. A negative index or one past the end changes nothing and returns
// the profile as stored.
func (s *ProfileService) DeleteMemoryEntry(ctx context.Context, uid string, index int) (*domain.User, error) {
	now := s.now()
	u, err := s.Users.MutateUser(ctx, uid, func(u *domain.User) (bool, error) {
		if index < 0 || index >= len(u.MemoryEntries) {
			return false, nil
		}
		entries := make([]string, 0, len(u.MemoryEntries)-1)
		entries = append(entries, u.MemoryEntries[:index]...)
		u.MemoryEntries = append(entries, u.MemoryEntries[index+1:]...)
		u.UpdatedAt = now
		return true, nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}
