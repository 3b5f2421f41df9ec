package replica

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dyluth/bento/pkg/bento"
	"github.com/dyluth/bento/pkg/feed"
)

// Resolved is the most recent state entry found for a root.
type Resolved struct {
	Entry       *feed.Entry
	Document    bento.Document // nil when the payload could not be parsed
	SequenceKey int64
	FeedID      string
}

// Resolver finds the latest state of a Bento from its feed history.
type Resolver struct {
	feed Feed
	log  *slog.Logger
}

// NewResolver creates a resolver reading from f.
func NewResolver(f Feed, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{feed: f, log: logger}
}

// Latest returns the state update under rootID with the highest sequence key.
// When the root has no state updates yet, the root entry itself is returned,
// since the first write carries the initial state. Returns (nil, nil) when
// neither exists.
//
// Among updates sharing the highest key the feed's storage order decides;
// the outcome of such a race is not resolved here.
func (r *Resolver) Latest(ctx context.Context, rootID string) (*Resolved, error) {
	entry, err := r.feed.LatestChild(ctx, rootID, feed.EntryTypeStateUpdate)
	if err != nil && !feed.IsNotFound(err) {
		return nil, fmt.Errorf("failed to query latest state: %w", err)
	}

	if entry == nil {
		entry, err = r.feed.Get(ctx, rootID)
		if err != nil {
			if feed.IsNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read root entry: %w", err)
		}
	}

	res := &Resolved{
		Entry:       entry,
		SequenceKey: sequenceKeyOf(entry),
		FeedID:      entry.FeedID,
	}

	doc, err := bento.ParseDocument([]byte(entry.Payload))
	if err != nil {
		r.log.Warn("unparseable state entry",
			slog.String("entry_id", entry.ID),
			slog.String("root_id", rootID),
			slog.String("error", err.Error()))
		return res, nil
	}
	res.Document = doc
	return res, nil
}

// Snapshot is Latest followed by decoding. ok is false when no usable state exists.
func (r *Resolver) Snapshot(ctx context.Context, rootID string) (*bento.StateSnapshot, *Resolved, bool, error) {
	res, err := r.Latest(ctx, rootID)
	if err != nil || res == nil || res.Document == nil {
		return nil, res, false, err
	}
	snap, ok := bento.Decode(res.Document)
	return snap, res, ok, nil
}

// sequenceKeyOf treats a missing key as 0.
func sequenceKeyOf(e *feed.Entry) int64 {
	if !e.HasSequenceKey {
		return 0
	}
	return e.SequenceKey
}
