package feed

import (
	"fmt"

	"github.com/google/uuid"
)

// Entry is an immutable record of the feed. Root entries seed a new Bento in a
// conversation feed; state updates are children of a root, ordered by the
// writer-assigned sequence key.
type Entry struct {
	ID             string    `json:"id"`               // UUID - storage identity of this entry
	FeedID         string    `json:"feed_id"`          // Conversation feed the entry belongs to
	ParentID       string    `json:"parent_id"`        // Root entry ID for state updates, empty for roots
	Type           EntryType `json:"type"`             // Role of the entry in the thread
	SequenceKey    int64     `json:"sequence_key"`     // Per-root ordering key assigned by the writer
	HasSequenceKey bool      `json:"has_sequence_key"` // False when the writer did not assign a key
	Payload        string    `json:"payload"`          // Document JSON text
	TimestampMs    int64     `json:"timestamp_ms"`     // Unix milliseconds when the entry was appended
}

// EntryType defines the role an entry plays in a Bento thread.
type EntryType string

const (
	// EntryTypeBentoRoot is the first write of a Bento; its ID is the Bento's storage identity.
	EntryTypeBentoRoot EntryType = "todobento"

	// EntryTypeStateUpdate is a full-state replacement posted under a root.
	EntryTypeStateUpdate EntryType = "appstate"
)

// Member is a participant of a conversation feed.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsLocal     bool   `json:"is_local"`
}

// Validate checks if the EntryType is a valid enum value.
func (t EntryType) Validate() error {
	switch t {
	case EntryTypeBentoRoot, EntryTypeStateUpdate:
		return nil
	default:
		return fmt.Errorf("unknown entry type: %q", t)
	}
}

// Validate checks if the Entry has valid field values.
func (e *Entry) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid entry ID: not a valid UUID")
	}

	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid entry type: %w", err)
	}

	if e.FeedID == "" {
		return fmt.Errorf("feed ID cannot be empty")
	}

	switch e.Type {
	case EntryTypeBentoRoot:
		if e.ParentID != "" {
			return fmt.Errorf("root entry cannot have a parent")
		}
	case EntryTypeStateUpdate:
		if !isValidUUID(e.ParentID) {
			return fmt.Errorf("invalid parent ID: not a valid UUID")
		}
	}

	if e.SequenceKey < 0 {
		return fmt.Errorf("invalid sequence key: must be >= 0, got %d", e.SequenceKey)
	}

	return nil
}

// IsRoot reports whether the entry seeds a Bento.
func (e *Entry) IsRoot() bool {
	return e.Type == EntryTypeBentoRoot
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
