package replica

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dyluth/bento/pkg/bento"
	"github.com/dyluth/bento/pkg/feed"
)

// Options configures a Store.
type Options struct {
	// FeedID is the conversation feed new bentos are rooted in.
	FeedID string

	// LocalID identifies the local participant.
	LocalID string

	// VersionCode is written as version_code in every published state.
	VersionCode int

	// QueueSize bounds the publish and notification queues.
	QueueSize int

	Logger *slog.Logger
}

// Store holds the one active Bento of this process and the catalog of known
// bentos. All operations are serialised by a single mutex held across the
// whole read-modify-publish sequence, so local mutations never interleave with
// incoming snapshots.
//
// Publishing is fire-and-forget. A local mutation changes memory and queues a
// snapshot; the canonical transition happens when that snapshot comes back
// through the feed subscription, exactly like a remote one.
type Store struct {
	feed     Feed
	dir      Directory
	images   ImageCodec
	opts     Options
	log      *slog.Logger
	resolver *Resolver
	members  *MembershipCache
	notifier *Notifier
	pub      *publisher

	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	closed     bool
	rootID     string
	rootFeedID string
	active     *bento.Bento
	lastSeq    int64
	gen        uint64
	stopBridge context.CancelFunc
	catalog    []CatalogEntry
}

// NewStore creates a store. dir and images may be nil; member names are then
// empty and image operations fail.
func NewStore(f Feed, dir Directory, images ImageCodec, opts Options) (*Store, error) {
	if f == nil {
		return nil, fmt.Errorf("feed cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		feed:     f,
		dir:      dir,
		images:   images,
		opts:     opts,
		log:      opts.Logger,
		resolver: NewResolver(f, opts.Logger),
		members:  NewMembershipCache(dir),
		notifier: NewNotifier(opts.QueueSize, opts.Logger),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	s.pub = newPublisher(ctx, f, opts.QueueSize, opts.Logger)
	return s, nil
}

// Notifier returns the notifier fired for every observed state entry.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// Members returns the membership cache.
func (s *Store) Members() *MembershipCache {
	return s.members
}

// Resolver returns the history resolver.
func (s *Store) Resolver() *Resolver {
	return s.resolver
}

// Create publishes b as the first write of a new Bento (a root entry in the
// configured feed) and binds to it.
func (s *Store) Create(ctx context.Context, b *bento.Bento, message string) (string, error) {
	if err := b.Validate(); err != nil {
		return "", fmt.Errorf("invalid bento: %w", err)
	}
	if s.opts.FeedID == "" {
		return "", fmt.Errorf("no feed configured for new bentos")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	doc := bento.EncodeMessage(s.snapshotOf(b), message, nil)
	payload, err := doc.Marshal()
	if err != nil {
		return "", err
	}

	rootID, err := s.feed.Append(ctx, &feed.Entry{
		FeedID:  s.opts.FeedID,
		Type:    feed.EntryTypeBentoRoot,
		Payload: string(payload),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish bento root: %w", err)
	}
	s.log.Info("created bento",
		slog.String("root_id", rootID),
		slog.String("bento_uuid", b.UUID),
		slog.String("feed_id", s.opts.FeedID))

	if err := s.bindLocked(ctx, rootID); err != nil {
		return rootID, err
	}
	return rootID, nil
}

// BindTo makes the Bento rooted at rootID the active one, hydrating it from
// its latest state entry. The previous subscription is closed first.
func (s *Store) BindTo(ctx context.Context, rootID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.bindLocked(ctx, rootID)
}

func (s *Store) bindLocked(ctx context.Context, rootID string) error {
	s.unbindLocked()

	snap, res, ok, err := s.resolver.Snapshot(ctx, rootID)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("%w: %s", ErrRootNotFound, rootID)
	}

	// subscribe first so a failure leaves the store empty
	sub, err := s.feed.Subscribe(s.baseCtx, rootID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to bento %s: %w", rootID, err)
	}

	s.rootID = rootID
	s.rootFeedID = res.FeedID
	if ok {
		s.active = &snap.Bento
		s.lastSeq = res.SequenceKey
	} else {
		s.log.Warn("bento has no usable state", slog.String("root_id", rootID))
	}

	s.gen++
	loopCtx, stop := context.WithCancel(s.baseCtx)
	s.stopBridge = stop
	bridge := &Bridge{
		store:    s,
		notifier: s.notifier,
		log:      s.log,
		rootID:   rootID,
		gen:      s.gen,
	}
	go bridge.Run(loopCtx, sub)

	s.log.Debug("bound bento",
		slog.String("root_id", rootID),
		slog.Bool("loaded", s.active != nil),
		slog.Int64("sequence_key", s.lastSeq))
	return nil
}

// unbindLocked returns to the empty state and stops the current bridge.
// It does not wait for the bridge: a late entry is dropped by the generation check.
func (s *Store) unbindLocked() {
	if s.stopBridge != nil {
		s.stopBridge()
		s.stopBridge = nil
	}
	s.gen++
	s.rootID = ""
	s.rootFeedID = ""
	s.active = nil
	s.lastSeq = 0
}

// Reset unbinds the active Bento and clears the catalog and member cache.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbindLocked()
	s.catalog = nil
	s.members.Reset()
}

// applyEntry is called by a bridge for every state entry. It reports whether
// the entry replaced the active bento.
func (s *Store) applyEntry(gen uint64, doc bento.Document, seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	if s.active == nil {
		return false
	}

	id, ok := bento.BentoUUID(doc)
	if !ok {
		s.log.Warn("state entry without bento object", slog.String("root_id", s.rootID))
		return false
	}
	if id != s.active.UUID {
		s.log.Debug("ignoring state for another bento",
			slog.String("bento_uuid", id),
			slog.String("active_uuid", s.active.UUID))
		return false
	}

	snap, ok := bento.Decode(doc)
	if !ok {
		return false
	}
	s.active = &snap.Bento
	s.lastSeq = seq
	return true
}

// ApplyRemoteSnapshot replaces the whole active Bento with snap and records
// sequenceKey as the last seen key. There is no merge.
func (s *Store) ApplyRemoteSnapshot(snap *bento.StateSnapshot, sequenceKey int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if s.active == nil {
		return ErrNoBento
	}
	s.active = snap.Bento.Clone()
	s.lastSeq = sequenceKey
	return nil
}

// AddItem prepends item (newest first) and publishes. When image is non-empty
// the published entry also carries the image attachment for item.
func (s *Store) AddItem(ctx context.Context, item bento.TodoItem, image []byte, message string) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid todo item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoBento
	}

	var att *bento.ImageAttachment
	if len(image) > 0 {
		if s.images == nil {
			return fmt.Errorf("no image codec configured")
		}
		item.HasImage = true
		att = &bento.ImageAttachment{
			TodoItemUUID:     item.UUID,
			EncodedImageData: s.images.Encode(image),
		}
	}

	s.active.TodoItems = append([]bento.TodoItem{item}, s.active.TodoItems...)
	return s.publishLocked(message, att)
}

// UpdateItem replaces the item with the same uuid in place and publishes.
// An unknown uuid is silently ignored: nothing changes and nothing is published.
func (s *Store) UpdateItem(ctx context.Context, item bento.TodoItem, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoBento
	}

	i := s.active.IndexOf(item.UUID)
	if i < 0 {
		return nil
	}
	s.active.TodoItems[i] = item
	return s.publishLocked(message, nil)
}

// ReorderItem moves the item at from to index to. It only changes memory;
// callers publish with SortCompleted once the drag is finished.
func (s *Store) ReorderItem(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoBento
	}

	n := len(s.active.TodoItems)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d → %d with %d items", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		return nil
	}

	items := s.active.TodoItems
	item := items[from]
	if from < to {
		copy(items[from:to], items[from+1:to+1])
	} else {
		copy(items[to+1:from+1], items[to:from])
	}
	items[to] = item
	return nil
}

// SortCompleted publishes the current order after one or more ReorderItem calls.
func (s *Store) SortCompleted(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoBento
	}
	return s.publishLocked(message, nil)
}

// ClearCompleted removes every done item, keeping the relative order of the
// rest, and publishes only if something was removed. Returns the number removed.
func (s *Store) ClearCompleted(ctx context.Context, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, ErrNoBento
	}

	before := len(s.active.TodoItems)
	if before == 0 {
		return 0, nil
	}

	items := s.active.TodoItems
	// back to front so indices stay valid while removing
	for i := before - 1; i >= 0; i-- {
		if items[i].Done {
			items = append(items[:i], items[i+1:]...)
		}
	}
	s.active.TodoItems = items

	removed := before - len(items)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.publishLocked(message, nil)
}

// RemoveItem is not supported yet. It reports success without changing or
// publishing anything.
func (s *Store) RemoveItem(ctx context.Context, item bento.TodoItem, message string) error {
	return nil
}

// Publish queues the current state as a new state update.
func (s *Store) Publish(ctx context.Context, message string, att *bento.ImageAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoBento
	}
	return s.publishLocked(message, att)
}

// publishLocked assigns the next sequence key and queues the snapshot.
// Concurrent writers on other replicas may pick the same key; nothing here
// prevents that.
func (s *Store) publishLocked(message string, att *bento.ImageAttachment) error {
	doc := bento.EncodeMessage(s.snapshotOf(s.active), message, att)
	payload, err := doc.Marshal()
	if err != nil {
		return err
	}

	s.lastSeq++
	return s.pub.enqueue(&feed.Entry{
		FeedID:         s.rootFeedID,
		ParentID:       s.rootID,
		Type:           feed.EntryTypeStateUpdate,
		SequenceKey:    s.lastSeq,
		HasSequenceKey: true,
		Payload:        string(payload),
	})
}

func (s *Store) snapshotOf(b *bento.Bento) *bento.StateSnapshot {
	return &bento.StateSnapshot{SchemaVersion: s.opts.VersionCode, Bento: *b.Clone()}
}

// Flush waits until every queued publish was handed to the feed.
func (s *Store) Flush(ctx context.Context) error {
	return s.pub.flush(ctx)
}

// Close unbinds, drains pending publishes and stops all goroutines.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.unbindLocked()
	s.mu.Unlock()

	s.pub.close()
	s.notifier.Close()
	s.cancel()
	return nil
}

// HasBento reports whether a Bento is active.
func (s *Store) HasBento() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Bento returns a copy of the active Bento, or nil.
func (s *Store) Bento() *bento.Bento {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// ItemAt returns the item at position i.
func (s *Store) ItemAt(i int) (bento.TodoItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || i < 0 || i >= len(s.active.TodoItems) {
		return bento.TodoItem{}, false
	}
	return s.active.TodoItems[i], true
}

// Item returns the item with the given uuid.
func (s *Store) Item(todoUUID string) (bento.TodoItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return bento.TodoItem{}, false
	}
	i := s.active.IndexOf(todoUUID)
	if i < 0 {
		return bento.TodoItem{}, false
	}
	return s.active.TodoItems[i], true
}

// ItemCount returns the number of items of the active Bento, 0 when empty.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0
	}
	return len(s.active.TodoItems)
}

// LastSequenceKey returns the last sequence key seen or assigned.
func (s *Store) LastSequenceKey() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// RootID returns the storage identity of the bound Bento, or "".
func (s *Store) RootID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootID
}

// FeedID returns the conversation feed of the bound Bento, or "".
func (s *Store) FeedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootFeedID
}

// LocalID returns the local participant ID.
func (s *Store) LocalID() string {
	return s.opts.LocalID
}

// LocalParticipant returns the local member of the bound Bento's feed, or of
// the configured feed when nothing is bound. ok is false when the local
// participant never joined that feed.
func (s *Store) LocalParticipant(ctx context.Context) (feed.Member, bool, error) {
	if s.dir == nil {
		return feed.Member{}, false, nil
	}
	feedID := s.FeedID()
	if feedID == "" {
		feedID = s.opts.FeedID
	}
	m, ok, err := s.dir.Local(ctx, feedID)
	if err != nil {
		return feed.Member{}, false, fmt.Errorf("failed to look up local participant: %w", err)
	}
	return m, ok, nil
}
