package bento

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Wire contract key names. These are a fixed, versioned contract shared with
// every participant of a feed, older clients included; never rename them.
const (
	KeyRenderType = "render_type"
	KeyText       = "text"

	// root > state
	KeyState       = "state"
	KeyVersionCode = "version_code"
	KeyBento       = "bento"
	KeyList        = "list"

	// root > state > bento
	KeyBentoUUID      = "uuid"
	KeyBentoName      = "name"
	KeyBentoCreatorID = "cre_contact_id"

	// root > state > list[]
	KeyTodoUUID        = "uuid"
	KeyTodoTitle       = "title"
	KeyTodoDescription = "description"
	KeyTodoHasImage    = "has_image"
	KeyTodoDone        = "done"
	KeyTodoCreatedAt   = "cre_date"
	KeyTodoModifiedAt  = "mod_date"
	KeyTodoCreatorID   = "cre_contact_id"
	KeyTodoModifierID  = "mod_contact_id"

	// root > todo_image, root > b64jpgthumb
	KeyTodoImage     = "todo_image"
	KeyTodoImageUUID = "todo_image_uuid"
	KeyImageData     = "b64jpgthumb"

	// RenderLatest asks renderers to show only the newest entry of a thread.
	RenderLatest = "latest"
)

// Document is a parsed feed entry payload.
type Document map[string]any

// Encode maps a snapshot to its state document. Encode never fails.
func Encode(s *StateSnapshot) Document {
	return Document{KeyState: encodeState(s)}
}

// EncodeMessage builds the full document posted to the feed: the state, the
// human-readable message and, when att is non-nil, the image attachment fields.
func EncodeMessage(s *StateSnapshot, message string, att *ImageAttachment) Document {
	doc := Encode(s)
	doc[KeyRenderType] = RenderLatest
	doc[KeyText] = message
	if att != nil && att.TodoItemUUID != "" && att.EncodedImageData != "" {
		doc[KeyTodoImage] = map[string]any{KeyTodoImageUUID: att.TodoItemUUID}
		doc[KeyImageData] = att.EncodedImageData
	}
	return doc
}

func encodeState(s *StateSnapshot) map[string]any {
	list := make([]any, 0, len(s.Bento.TodoItems))
	for _, item := range s.Bento.TodoItems {
		list = append(list, map[string]any{
			KeyTodoUUID:        item.UUID,
			KeyTodoTitle:       item.Title,
			KeyTodoDescription: item.Description,
			KeyTodoHasImage:    item.HasImage,
			KeyTodoDone:        item.Done,
			KeyTodoCreatedAt:   item.CreatedAtMillis,
			KeyTodoModifiedAt:  item.ModifiedAtMillis,
			KeyTodoCreatorID:   item.CreatorID,
			KeyTodoModifierID:  item.ModifierID,
		})
	}

	return map[string]any{
		KeyVersionCode: s.SchemaVersion,
		KeyBento: map[string]any{
			KeyBentoUUID:      s.Bento.UUID,
			KeyBentoName:      s.Bento.Name,
			KeyBentoCreatorID: s.Bento.CreatorID,
		},
		KeyList: list,
	}
}

// Decode reads the state section of a document. Every field is read with a
// default (missing string → "", bool → false, number → 0) because documents
// written by older and newer clients share the same feed. A missing or
// malformed state or bento object yields ok == false.
func Decode(doc Document) (*StateSnapshot, bool) {
	state, ok := object(doc[KeyState])
	if !ok {
		return nil, false
	}
	bentoObj, ok := object(state[KeyBento])
	if !ok {
		return nil, false
	}

	s := &StateSnapshot{
		SchemaVersion: int(toInt64(state[KeyVersionCode])),
		Bento: Bento{
			UUID:      cast.ToString(bentoObj[KeyBentoUUID]),
			Name:      cast.ToString(bentoObj[KeyBentoName]),
			CreatorID: cast.ToString(bentoObj[KeyBentoCreatorID]),
		},
	}

	list := array(state[KeyList])
	s.Bento.TodoItems = make([]TodoItem, 0, len(list))
	for _, raw := range list {
		todoObj, ok := object(raw)
		if !ok {
			continue
		}
		s.Bento.TodoItems = append(s.Bento.TodoItems, TodoItem{
			UUID:             cast.ToString(todoObj[KeyTodoUUID]),
			Title:            cast.ToString(todoObj[KeyTodoTitle]),
			Description:      cast.ToString(todoObj[KeyTodoDescription]),
			HasImage:         cast.ToBool(todoObj[KeyTodoHasImage]),
			Done:             cast.ToBool(todoObj[KeyTodoDone]),
			CreatedAtMillis:  toInt64(todoObj[KeyTodoCreatedAt]),
			ModifiedAtMillis: toInt64(todoObj[KeyTodoModifiedAt]),
			CreatorID:        cast.ToString(todoObj[KeyTodoCreatorID]),
			ModifierID:       cast.ToString(todoObj[KeyTodoModifierID]),
		})
	}

	return s, true
}

// HasState reports whether the document carries a state section at all.
func HasState(doc Document) bool {
	_, ok := object(doc[KeyState])
	return ok
}

// BentoUUID extracts the embedded bento uuid without decoding the list.
func BentoUUID(doc Document) (string, bool) {
	state, ok := object(doc[KeyState])
	if !ok {
		return "", false
	}
	bentoObj, ok := object(state[KeyBento])
	if !ok {
		return "", false
	}
	return cast.ToString(bentoObj[KeyBentoUUID]), true
}

// Attachment returns the image attachment carried by the document, if any.
func Attachment(doc Document) (*ImageAttachment, bool) {
	imgObj, ok := object(doc[KeyTodoImage])
	if !ok {
		return nil, false
	}
	att := &ImageAttachment{
		TodoItemUUID:     cast.ToString(imgObj[KeyTodoImageUUID]),
		EncodedImageData: cast.ToString(doc[KeyImageData]),
	}
	if att.TodoItemUUID == "" {
		return nil, false
	}
	return att, true
}

// Message returns the human-readable text of the document.
func Message(doc Document) string {
	return cast.ToString(doc[KeyText])
}

// ParseDocument parses raw feed payload text. Unparseable input is an error;
// callers log it and treat the document as absent.
func ParseDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("failed to parse document: not an object")
	}
	return doc, nil
}

// Marshal serialises a document to JSON text for storage.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

func object(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case Document:
		return o, true
	default:
		return nil, false
	}
}

func array(v any) []any {
	switch a := v.(type) {
	case []any:
		return a
	case []map[string]any:
		out := make([]any, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out
	default:
		return nil
	}
}

// toInt64 reads a number field. Numbers and numeric strings are always read
// in base 10; fractional and exponent forms are truncated. Anything else is 0.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		return parseDecimal(string(n))
	case string:
		return parseDecimal(strings.TrimSpace(n))
	case float64:
		return truncate(n)
	case float32:
		return truncate(float64(n))
	default:
		return cast.ToInt64(v)
	}
}

func parseDecimal(s string) int64 {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return truncate(f)
}

func truncate(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}
