package replica

import (
	"context"
	"log/slog"

	"github.com/dyluth/bento/pkg/bento"
	"github.com/dyluth/bento/pkg/feed"
)

// Bridge routes entries observed on a root's subscription into the store.
// One bridge exists per binding; entries that arrive after the store was
// rebound are discarded.
type Bridge struct {
	store    *Store
	notifier *Notifier
	log      *slog.Logger
	rootID   string
	gen      uint64
}

// Run consumes sub until it closes or ctx is cancelled, then closes sub.
func (b *Bridge) Run(ctx context.Context, sub *feed.Subscription) {
	defer sub.Close()

	events, errs := sub.Events(), sub.Errors()
	for events != nil {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.Handle(e)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			b.log.Warn("feed subscription error",
				slog.String("root_id", b.rootID),
				slog.String("error", err.Error()))
		}
	}
}

// Handle filters one incoming entry and applies it when it carries state for
// the active bento. Every entry with a state section triggers a notification,
// whether or not it was applied, because catalog summaries may still change.
func (b *Bridge) Handle(e *feed.Entry) {
	if e == nil {
		return
	}

	doc, err := bento.ParseDocument([]byte(e.Payload))
	if err != nil {
		b.log.Warn("ignoring unparseable feed entry",
			slog.String("entry_id", e.ID),
			slog.String("error", err.Error()))
		return
	}
	if !bento.HasState(doc) {
		b.log.Debug("ignoring entry without state", slog.String("entry_id", e.ID))
		return
	}

	u := Update{
		RootID:      b.rootID,
		EntryID:     e.ID,
		SequenceKey: sequenceKeyOf(e),
	}
	u.BentoUUID, _ = bento.BentoUUID(doc)
	u.Applied = b.store.applyEntry(b.gen, doc, u.SequenceKey)

	b.notifier.NotifyAll(u)
}
