// Package bento provides the data model and wire codec for replicated todo-list
// containers. A Bento is shared between the participants of a conversation
// feed by posting full state snapshots; every snapshot is a self-contained
// document that can be decoded without any earlier history.
package bento

import (
	"fmt"

	"github.com/google/uuid"
)

// Bento is a named todo-list container identified by a stable UUID.
// The order of TodoItems is part of the replicated state.
type Bento struct {
	UUID      string     `json:"uuid"`       // Assigned once at creation, immutable
	Name      string     `json:"name"`       // Display name
	CreatorID string     `json:"creator_id"` // Participant that created the bento
	TodoItems []TodoItem `json:"todo_items"` // User-ordered, newest first by default
}

// TodoItem is a single entry of a Bento.
type TodoItem struct {
	UUID             string `json:"uuid"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	HasImage         bool   `json:"has_image"`
	Done             bool   `json:"done"`
	CreatedAtMillis  int64  `json:"created_at_ms"`
	ModifiedAtMillis int64  `json:"modified_at_ms"`
	CreatorID        string `json:"creator_id"`
	ModifierID       string `json:"modifier_id"`
}

// StateSnapshot is the exact state payload written to and read from the feed.
// A snapshot is either fully valid or absent; there is no partial snapshot.
type StateSnapshot struct {
	SchemaVersion int   `json:"schema_version"`
	Bento         Bento `json:"bento"`
}

// ImageAttachment binds raw image data to a todo item. It travels as sibling
// fields of the state on a single feed entry and is never part of the snapshot.
type ImageAttachment struct {
	TodoItemUUID     string `json:"todo_item_uuid"`
	EncodedImageData string `json:"encoded_image_data"`
}

// New creates an empty Bento with a fresh UUID.
func New(name, creatorID string) *Bento {
	return &Bento{
		UUID:      uuid.New().String(),
		Name:      name,
		CreatorID: creatorID,
		TodoItems: []TodoItem{},
	}
}

// NewTodoItem creates a todo item authored by creatorID at nowMillis.
func NewTodoItem(title, description, creatorID string, nowMillis int64) TodoItem {
	return TodoItem{
		UUID:             uuid.New().String(),
		Title:            title,
		Description:      description,
		CreatedAtMillis:  nowMillis,
		ModifiedAtMillis: nowMillis,
		CreatorID:        creatorID,
		ModifierID:       creatorID,
	}
}

// Clone returns a deep copy of the Bento so callers never share the item slice.
func (b *Bento) Clone() *Bento {
	if b == nil {
		return nil
	}
	c := *b
	if b.TodoItems != nil {
		c.TodoItems = make([]TodoItem, len(b.TodoItems))
		copy(c.TodoItems, b.TodoItems)
	}
	return &c
}

// IndexOf returns the position of the item with the given UUID, or -1.
func (b *Bento) IndexOf(todoUUID string) int {
	for i := range b.TodoItems {
		if b.TodoItems[i].UUID == todoUUID {
			return i
		}
	}
	return -1
}

// DoneCount returns the number of completed items.
func (b *Bento) DoneCount() int {
	n := 0
	for _, item := range b.TodoItems {
		if item.Done {
			n++
		}
	}
	return n
}

// Validate checks that a locally created Bento carries a usable identity.
// Decoded snapshots are never validated; the wire contract is permissive.
func (b *Bento) Validate() error {
	if b.UUID == "" {
		return fmt.Errorf("bento uuid cannot be empty")
	}
	if b.Name == "" {
		return fmt.Errorf("bento name cannot be empty")
	}

	seen := make(map[string]struct{}, len(b.TodoItems))
	for i, item := range b.TodoItems {
		if item.UUID == "" {
			return fmt.Errorf("todo item at index %d has empty uuid", i)
		}
		if _, dup := seen[item.UUID]; dup {
			return fmt.Errorf("duplicate todo item uuid %q", item.UUID)
		}
		seen[item.UUID] = struct{}{}
	}

	return nil
}

// Validate checks that a todo item can be added to a Bento.
func (t *TodoItem) Validate() error {
	if t.UUID == "" {
		return fmt.Errorf("todo item uuid cannot be empty")
	}
	if t.Title == "" {
		return fmt.Errorf("todo item title cannot be empty")
	}
	return nil
}

// IsValidUUID reports whether s parses as a UUID.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
