package replica

import (
	"context"
	"fmt"
	"sync"
)

// MembershipCache memoizes the display names of the other participants of
// each feed. Entries never expire; Reset drops them all.
type MembershipCache struct {
	dir Directory

	mu    sync.Mutex
	names map[string][]string
}

// NewMembershipCache creates a cache backed by dir. A nil dir yields empty names.
func NewMembershipCache(dir Directory) *MembershipCache {
	return &MembershipCache{dir: dir}
}

// NamesFor returns the display names of every member of feedID except the
// local participant, asking the directory on the first call only.
func (m *MembershipCache) NamesFor(ctx context.Context, feedID string) ([]string, error) {
	m.mu.Lock()
	if names, ok := m.names[feedID]; ok {
		m.mu.Unlock()
		return copyNames(names), nil
	}
	m.mu.Unlock()

	names := []string{}
	if m.dir != nil {
		members, err := m.dir.MembersOf(ctx, feedID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch members of feed %s: %w", feedID, err)
		}
		for _, member := range members {
			if member.IsLocal {
				continue
			}
			names = append(names, member.DisplayName)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names == nil {
		m.names = make(map[string][]string)
	}
	// a concurrent miss may have filled it first; keep the first result
	if cached, ok := m.names[feedID]; ok {
		return copyNames(cached), nil
	}
	m.names[feedID] = names
	return copyNames(names), nil
}

// Cached reports whether names for feedID are already memoized.
func (m *MembershipCache) Cached(feedID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.names[feedID]
	return ok
}

// Reset drops every cached entry.
func (m *MembershipCache) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = nil
}

func copyNames(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}
