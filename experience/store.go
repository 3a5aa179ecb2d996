package experience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentruntime/core/errs"
)

// Store persists and retrieves experiences (spec.md §4.6 Operations).
type Store interface {
	Save(ctx context.Context, e *Experience) error
	BatchSave(ctx context.Context, es []*Experience) error
	DeleteByID(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Experience, error)
	Count(ctx context.Context) (int, error)
	CountByTypeAndScope(ctx context.Context, t Type, s Scope) (int, error)
	FindByTypeAndScope(ctx context.Context, t Type, s Scope, owner, project string) ([]*Experience, error)
	Query(ctx context.Context, q Query, qc QueryContext) ([]*Experience, error)
}

// MemoryStore is the default in-memory Store, a concurrent keyed store with
// per-entry replace semantics (spec.md §5 Shared-resource policy).
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Experience
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Experience)}
}

// Save upserts a copy of e, assigning a UUID if e.ID is blank. CreatedAt and
// UpdatedAt are stored as given; Save does not stamp them.
func (s *MemoryStore) Save(_ context.Context, e *Experience) error {
	if e == nil {
		return errs.New(errs.KindValidation, "experience is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(e)
	return nil
}

func (s *MemoryStore) saveLocked(e *Experience) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	s.byID[e.ID] = &cp
}

// BatchSave saves each experience; atomic per entry but not across entries
// (spec.md §5), so a failure partway through leaves earlier entries saved.
func (s *MemoryStore) BatchSave(_ context.Context, es []*Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range es {
		if e == nil {
			continue
		}
		s.saveLocked(e)
	}
	return nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, errs.New(errs.KindValidation, "experience not found").WithField("id", id)
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *MemoryStore) CountByTypeAndScope(_ context.Context, t Type, sc Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.byID {
		if e.Type == t && e.Scope == sc {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) FindByTypeAndScope(_ context.Context, t Type, sc Scope, owner, project string) ([]*Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Experience
	for _, e := range s.byID {
		if e.Type != t || e.Scope != sc {
			continue
		}
		if owner != "" && e.Attribution.Owner != owner {
			continue
		}
		if project != "" && e.Attribution.Project != project {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sortByUpdatedAtDesc(out)
	return out, nil
}

// Query returns experiences matching q, sorted by scope specificity (per
// qc) then updated-at descending (spec.md §4.6).
func (s *MemoryStore) Query(_ context.Context, q Query, qc QueryContext) ([]*Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Experience
	for _, e := range s.byID {
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if q.Language != "" && e.Language != q.Language {
			continue
		}
		if q.Scope != "" && e.Scope != q.Scope {
			continue
		}
		if !hasAllTags(e, q.Tags) {
			continue
		}
		cp := *e
		candidates = append(candidates, &cp)
	}

	return RankAndSort(candidates, qc), nil
}

func hasAllTags(e *Experience, tags []string) bool {
	for _, t := range tags {
		if !e.HasTag(t) {
			return false
		}
	}
	return true
}

func sortByUpdatedAtDesc(es []*Experience) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].UpdatedAt.After(es[j].UpdatedAt) })
}

// StampTimestamps sets CreatedAt on e if not already set and always sets
// UpdatedAt to now. Used by callers (e.g. the learning extractor) that build
// Experience values before saving them, since Save keeps timestamps as given.
func StampTimestamps(e *Experience, now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}
