package sys

import (
	"context"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// IDSet is a persisted set of user IDs such as sudoers or the blocklist.
// Rebuild is the canonical mutation; Add and Remove derive a new member list
// and rebuild from it.
type IDSet struct {
	name string
	mu   sync.RWMutex
	ids  map[snowflake.ID]struct{}
	// persist is nil for in-memory sets.
	persist func(ctx context.Context, list string, ids []snowflake.ID) error
}

func NewIDSet(name string) *IDSet {
	return &IDSet{name: name, ids: make(map[snowflake.ID]struct{})}
}

// LoadIDSet reads the named list from the database and keeps it persisted.
func LoadIDSet(ctx context.Context, name string, seed ...snowflake.ID) (*IDSet, error) {
	stored, err := LoadIDList(ctx, name)
	if err != nil {
		return nil, err
	}
	s := NewIDSet(name)
	s.persist = ReplaceIDList
	s.fill(append(seed, stored...))
	return s, nil
}

func (s *IDSet) Name() string { return s.name }

func (s *IDSet) Contains(id snowflake.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *IDSet) Add(ctx context.Context, id snowflake.ID) error {
	if s.Contains(id) {
		return nil
	}
	return s.Rebuild(ctx, append(s.Members(), id))
}

func (s *IDSet) Remove(ctx context.Context, id snowflake.ID) error {
	if !s.Contains(id) {
		return nil
	}
	members := s.Members()
	members = slices.DeleteFunc(members, func(m snowflake.ID) bool { return m == id })
	return s.Rebuild(ctx, members)
}

// Rebuild replaces the whole membership with ids.
func (s *IDSet) Rebuild(ctx context.Context, ids []snowflake.ID) error {
	if s.persist != nil {
		if err := s.persist(ctx, s.name, ids); err != nil {
			return err
		}
	}
	s.fill(ids)
	return nil
}

// Members returns the IDs sorted ascending.
func (s *IDSet) Members() []snowflake.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snowflake.ID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *IDSet) fill(ids []snowflake.ID) {
	next := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		if id != 0 {
			next[id] = struct{}{}
		}
	}
	s.mu.Lock()
	s.ids = next
	s.mu.Unlock()
}
