package replica

import (
	"context"
	"fmt"
	"log/slog"
)

// CatalogEntry is one row of the bento list. Divider rows start the group of
// a conversation feed and carry the names of its other members; all other
// rows summarise one Bento.
type CatalogEntry struct {
	Divider   bool     `json:"divider"`
	FeedID    string   `json:"feed_id"`
	Members   []string `json:"members,omitempty"`
	RootID    string   `json:"root_id,omitempty"`
	BentoUUID string   `json:"bento_uuid,omitempty"`
	Name      string   `json:"name,omitempty"`
	TodoCount int      `json:"todo_count"`
}

// LoadCatalog rebuilds the bento list from every root entry of the feed.
// Roots are read in (feed asc, time asc) order and each valid summary is
// prepended, so the newest bento of the last feed comes first. Roots without
// usable state are skipped. Member names of every listed feed are warmed in
// the membership cache, then a divider is inserted whenever the feed changes.
func (s *Store) LoadCatalog(ctx context.Context) error {
	roots, err := s.feed.ListRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bentos: %w", err)
	}

	var summaries []CatalogEntry
	for _, root := range roots {
		snap, _, ok, err := s.resolver.Snapshot(ctx, root.ID)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("skipping bento without usable state", slog.String("root_id", root.ID))
			continue
		}

		summaries = append([]CatalogEntry{{
			FeedID:    root.FeedID,
			RootID:    root.ID,
			BentoUUID: snap.Bento.UUID,
			Name:      snap.Bento.Name,
			TodoCount: len(snap.Bento.TodoItems),
		}}, summaries...)

		if _, err := s.members.NamesFor(ctx, root.FeedID); err != nil {
			s.log.Warn("failed to load member names",
				slog.String("feed_id", root.FeedID),
				slog.String("error", err.Error()))
		}
	}

	var catalog []CatalogEntry
	prevFeed := ""
	for i, item := range summaries {
		if i == 0 || item.FeedID != prevFeed {
			names, _ := s.members.NamesFor(ctx, item.FeedID)
			catalog = append(catalog, CatalogEntry{Divider: true, FeedID: item.FeedID, Members: names})
			prevFeed = item.FeedID
		}
		catalog = append(catalog, item)
	}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	return nil
}

// Catalog returns a copy of the last loaded bento list.
func (s *Store) Catalog() []CatalogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CatalogEntry, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// CatalogCount returns the number of rows, dividers included.
func (s *Store) CatalogCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.catalog)
}

// CatalogAt returns row i of the bento list.
func (s *Store) CatalogAt(i int) (CatalogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.catalog) {
		return CatalogEntry{}, false
	}
	return s.catalog[i], true
}

// MemberNames returns the other members of feedID through the cache.
func (s *Store) MemberNames(ctx context.Context, feedID string) ([]string, error) {
	return s.members.NamesFor(ctx, feedID)
}
