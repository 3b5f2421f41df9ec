package feed

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between entries and Redis hashes.
//
// Redis stores data as string-to-string maps. The document payload is kept as
// opaque JSON text in a single field; the feed never interprets it.

// EntryToHash converts an Entry to a Redis hash format.
func EntryToHash(e *Entry) map[string]interface{} {
	return map[string]interface{}{
		"id":               e.ID,
		"feed_id":          e.FeedID,
		"parent_id":        e.ParentID,
		"type":             string(e.Type),
		"sequence_key":     e.SequenceKey,
		"has_sequence_key": e.HasSequenceKey,
		"payload":          e.Payload,
		"timestamp_ms":     e.TimestampMs,
	}
}

// HashToEntry converts a Redis hash to an Entry.
func HashToEntry(hash map[string]string) (*Entry, error) {
	if hash["id"] == "" {
		return nil, fmt.Errorf("entry hash missing id field")
	}

	var seq int64
	if raw := hash["sequence_key"]; raw != "" {
		var err error
		seq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sequence_key field: %w", err)
		}
	}

	// go-redis writes bools as "1"/"0"
	hasSeq, _ := strconv.ParseBool(hash["has_sequence_key"])
	timestampMs, _ := strconv.ParseInt(hash["timestamp_ms"], 10, 64)

	return &Entry{
		ID:             hash["id"],
		FeedID:         hash["feed_id"],
		ParentID:       hash["parent_id"],
		Type:           EntryType(hash["type"]),
		SequenceKey:    seq,
		HasSequenceKey: hasSeq,
		Payload:        hash["payload"],
		TimestampMs:    timestampMs,
	}, nil
}
