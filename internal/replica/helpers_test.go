package replica

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/bento/internal/imaging"
	"github.com/dyluth/bento/pkg/bento"
	"github.com/dyluth/bento/pkg/feed"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memFeed is an in-memory Feed. Subscriptions only receive entries when
// autoDeliver is set, so tests decide when the round trip happens.
type memFeed struct {
	mu          sync.Mutex
	entries     map[string]*feed.Entry
	children    map[string][]*feed.Entry
	roots       []*feed.Entry
	appends     []*feed.Entry
	subs        map[string]chan *feed.Entry
	autoDeliver bool
	clock         int64
	failAppend    error
	failSubscribe error
}

func newMemFeed() *memFeed {
	return &memFeed{
		entries:  make(map[string]*feed.Entry),
		children: make(map[string][]*feed.Entry),
		subs:     make(map[string]chan *feed.Entry),
	}
}

func (m *memFeed) Append(ctx context.Context, e *feed.Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAppend != nil {
		return "", m.failAppend
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.TimestampMs == 0 {
		m.clock++
		e.TimestampMs = m.clock
	}
	if e.FeedID == "" && e.ParentID != "" {
		if parent, ok := m.entries[e.ParentID]; ok {
			e.FeedID = parent.FeedID
		}
	}
	if err := e.Validate(); err != nil {
		return "", err
	}

	stored := *e
	m.entries[stored.ID] = &stored
	m.appends = append(m.appends, &stored)
	if stored.IsRoot() {
		m.roots = append(m.roots, &stored)
		return stored.ID, nil
	}
	m.children[stored.ParentID] = append(m.children[stored.ParentID], &stored)

	if ch, ok := m.subs[stored.ParentID]; ok && m.autoDeliver {
		delivered := stored
		ch <- &delivered
	}
	return stored.ID, nil
}

func (m *memFeed) Get(ctx context.Context, id string) (*feed.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, redis.Nil
	}
	c := *e
	return &c, nil
}

func (m *memFeed) LatestChild(ctx context.Context, parentID string, t feed.EntryType) (*feed.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *feed.Entry
	for _, e := range m.children[parentID] {
		if e.Type != t {
			continue
		}
		// equal keys: the later one in storage order wins
		if best == nil || e.SequenceKey >= best.SequenceKey {
			best = e
		}
	}
	if best == nil {
		return nil, redis.Nil
	}
	c := *best
	return &c, nil
}

func (m *memFeed) History(ctx context.Context, parentID string) ([]*feed.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*feed.Entry, len(m.children[parentID]))
	copy(out, m.children[parentID])
	return out, nil
}

func (m *memFeed) ListRoots(ctx context.Context) ([]*feed.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*feed.Entry, len(m.roots))
	copy(out, m.roots)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FeedID != out[j].FeedID {
			return out[i].FeedID < out[j].FeedID
		}
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out, nil
}

func (m *memFeed) Subscribe(ctx context.Context, parentID string) (*feed.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSubscribe != nil {
		return nil, m.failSubscribe
	}
	events := make(chan *feed.Entry, 32)
	errs := make(chan error)
	m.subs[parentID] = events

	return feed.NewSubscription(events, errs, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.subs[parentID] == events {
			delete(m.subs, parentID)
		}
	}), nil
}

// updates returns the state updates appended so far.
func (m *memFeed) updates() []*feed.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*feed.Entry
	for _, e := range m.appends {
		if e.Type == feed.EntryTypeStateUpdate {
			out = append(out, e)
		}
	}
	return out
}

func (m *memFeed) addRoot(t *testing.T, feedID string, s *bento.StateSnapshot) string {
	t.Helper()
	payload, err := bento.EncodeMessage(s, "", nil).Marshal()
	require.NoError(t, err)
	id, err := m.Append(context.Background(), &feed.Entry{FeedID: feedID, Type: feed.EntryTypeBentoRoot, Payload: string(payload)})
	require.NoError(t, err)
	return id
}

func (m *memFeed) addUpdate(t *testing.T, rootID string, seq int64, s *bento.StateSnapshot) string {
	t.Helper()
	payload, err := bento.EncodeMessage(s, "", nil).Marshal()
	require.NoError(t, err)
	id, err := m.Append(context.Background(), &feed.Entry{
		ParentID:       rootID,
		Type:           feed.EntryTypeStateUpdate,
		SequenceKey:    seq,
		HasSequenceKey: true,
		Payload:        string(payload),
	})
	require.NoError(t, err)
	return id
}

// fakeDirectory counts lookups.
type fakeDirectory struct {
	mu      sync.Mutex
	members map[string][]feed.Member
	calls   int
	err     error
}

func (d *fakeDirectory) MembersOf(ctx context.Context, feedID string) ([]feed.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.members[feedID], nil
}

func (d *fakeDirectory) Local(ctx context.Context, feedID string) (feed.Member, bool, error) {
	members, err := d.MembersOf(ctx, feedID)
	if err != nil {
		return feed.Member{}, false, err
	}
	for _, m := range members {
		if m.IsLocal {
			return m, true, nil
		}
	}
	return feed.Member{}, false, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, f Feed) *Store {
	t.Helper()
	dir := &fakeDirectory{members: map[string][]feed.Member{
		"family": {{ID: "u1", DisplayName: "Kaz", IsLocal: true}, {ID: "u2", DisplayName: "Ann"}},
	}}
	s, err := NewStore(f, dir, imaging.NewCodec(), Options{
		FeedID:      "family",
		LocalID:     "u1",
		VersionCode: 3,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func decodeEntry(t *testing.T, e *feed.Entry) *bento.StateSnapshot {
	t.Helper()
	doc, err := bento.ParseDocument([]byte(e.Payload))
	require.NoError(t, err)
	snap, ok := bento.Decode(doc)
	require.True(t, ok, "entry %s has no usable state", e.ID)
	return snap
}

func snapshot(uuid, name string, items ...bento.TodoItem) *bento.StateSnapshot {
	return &bento.StateSnapshot{SchemaVersion: 3, Bento: bento.Bento{UUID: uuid, Name: name, CreatorID: "u1", TodoItems: items}}
}

func titles(b *bento.Bento) []string {
	out := make([]string, len(b.TodoItems))
	for i, item := range b.TodoItems {
		out[i] = item.Title
	}
	return out
}

func item(id, title string) bento.TodoItem {
	return bento.TodoItem{UUID: id, Title: title, CreatorID: "u1", ModifierID: "u1"}
}

// updateCollector records notifications delivered to it.
type updateCollector struct {
	ch chan Update
}

func newCollector(n *Notifier) *updateCollector {
	c := &updateCollector{ch: make(chan Update, 32)}
	n.Subscribe(ListenerFunc(func(u Update) { c.ch <- u }))
	return c
}

func (c *updateCollector) next(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-c.ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for state update notification")
		return Update{}
	}
}

func (c *updateCollector) none(t *testing.T) {
	t.Helper()
	select {
	case u := <-c.ch:
		t.Fatal(fmt.Sprintf("unexpected notification %+v", u))
	case <-time.After(100 * time.Millisecond):
	}
}
