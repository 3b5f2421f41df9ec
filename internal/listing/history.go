package listing

import (
	"github.com/dyluth/bento/internal/timespec"
	"github.com/dyluth/bento/pkg/bento"
	"github.com/dyluth/bento/pkg/feed"
)

// HistoryRow summarises one feed entry under a bento root.
type HistoryRow struct {
	EntryID     string `json:"entry_id"`
	SequenceKey int64  `json:"sequence_key"`
	TimestampMs int64  `json:"timestamp_ms"`
	HasState    bool   `json:"has_state"`
	BentoUUID   string `json:"bento_uuid,omitempty"`
	ItemCount   int    `json:"item_count"`
	ImageFor    string `json:"image_for,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Summarize builds a row from an entry. Unparseable payloads yield a row
// without state.
func Summarize(e *feed.Entry) HistoryRow {
	row := HistoryRow{
		EntryID:     e.ID,
		SequenceKey: e.SequenceKey,
		TimestampMs: e.TimestampMs,
	}

	doc, err := bento.ParseDocument([]byte(e.Payload))
	if err != nil {
		return row
	}
	row.Text = bento.Message(doc)
	if att, ok := bento.Attachment(doc); ok {
		row.ImageFor = att.TodoItemUUID
	}
	if snap, ok := bento.Decode(doc); ok {
		row.HasState = true
		row.BentoUUID = snap.Bento.UUID
		row.ItemCount = len(snap.Bento.TodoItems)
	}
	return row
}

// FilterHistory summarises the entries inside r, keeping their order.
func FilterHistory(entries []*feed.Entry, r timespec.Range) []HistoryRow {
	rows := make([]HistoryRow, 0, len(entries))
	for _, e := range entries {
		if !r.Contains(e.TimestampMs) {
			continue
		}
		rows = append(rows, Summarize(e))
	}
	return rows
}
