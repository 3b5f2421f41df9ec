package feed

import (
	"context"
	"fmt"
	"sort"
)

// Directory resolves the participants of conversation feeds.
// Membership is stored per feed as a hash of participant ID → display name.
type Directory struct {
	client  *Client
	localID string
}

// NewDirectory creates a directory that flags localID as the local participant.
func NewDirectory(client *Client, localID string) *Directory {
	return &Directory{client: client, localID: localID}
}

// Join records a participant as a member of a feed. Re-joining updates the display name.
func (d *Directory) Join(ctx context.Context, feedID, participantID, displayName string) error {
	if feedID == "" || participantID == "" {
		return fmt.Errorf("feed ID and participant ID are required")
	}
	key := MembersKey(d.client.instanceName, feedID)
	if err := d.client.rdb.HSet(ctx, key, participantID, displayName).Err(); err != nil {
		return fmt.Errorf("failed to write member to Redis: %w", err)
	}
	return nil
}

// MembersOf returns all members of a feed ordered by display name then ID.
// Returns an empty slice if the feed has no members (not an error).
func (d *Directory) MembersOf(ctx context.Context, feedID string) ([]Member, error) {
	raw, err := d.client.rdb.HGetAll(ctx, MembersKey(d.client.instanceName, feedID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read members from Redis: %w", err)
	}

	members := make([]Member, 0, len(raw))
	for id, name := range raw {
		members = append(members, Member{
			ID:          id,
			DisplayName: name,
			IsLocal:     id == d.localID,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].DisplayName != members[j].DisplayName {
			return members[i].DisplayName < members[j].DisplayName
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

// Local returns the local participant of a feed, or false if they never joined.
func (d *Directory) Local(ctx context.Context, feedID string) (Member, bool, error) {
	members, err := d.MembersOf(ctx, feedID)
	if err != nil {
		return Member{}, false, err
	}
	for _, m := range members {
		if m.IsLocal {
			return m, true, nil
		}
	}
	return Member{}, false, nil
}
