package replica

import (
	"context"
	"errors"
	"testing"

	"github.com/dyluth/bento/pkg/bento"
	"github.com/dyluth/bento/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateBindsNewBento(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()

	b := bento.Bento{UUID: "B", Name: "Groceries", CreatorID: "u1"}
	rootID, err := s.Create(ctx, &b, "new list")
	require.NoError(t, err)

	assert.True(t, s.HasBento())
	assert.Equal(t, rootID, s.RootID())
	assert.Equal(t, "family", s.FeedID())
	assert.Equal(t, int64(0), s.LastSequenceKey())

	root, err := mf.Get(ctx, rootID)
	require.NoError(t, err)
	assert.Equal(t, feed.EntryTypeBentoRoot, root.Type)
	snap := decodeEntry(t, root)
	assert.Equal(t, 3, snap.SchemaVersion)
	assert.Equal(t, "Groceries", snap.Bento.Name)

	doc, err := bento.ParseDocument([]byte(root.Payload))
	require.NoError(t, err)
	assert.Equal(t, "new list", bento.Message(doc))

	assert.Empty(t, mf.updates(), "create must not publish a state update")
}

func TestStore_CreateRejectsInvalidBento(t *testing.T) {
	s := newTestStore(t, newMemFeed())

	_, err := s.Create(context.Background(), &bento.Bento{Name: "no uuid"}, "")
	assert.Error(t, err)
	assert.False(t, s.HasBento())
}

func TestStore_CreateFailsWhenFeedRejects(t *testing.T) {
	mf := newMemFeed()
	mf.failAppend = errors.New("feed down")
	s := newTestStore(t, mf)

	_, err := s.Create(context.Background(), &bento.Bento{UUID: "B", Name: "x"}, "")
	assert.ErrorContains(t, err, "feed down")
	assert.False(t, s.HasBento())
}

func TestStore_GroceriesScenario(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()

	rootID, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "Groceries", CreatorID: "u1"}, "")
	require.NoError(t, err)

	require.NoError(t, s.AddItem(ctx, item("t1", "Milk"), nil, ""))
	flush(t, s)

	assert.Equal(t, []string{"Milk"}, titles(s.Bento()))
	updates := mf.updates()
	require.Len(t, updates, 1)
	assert.Equal(t, rootID, updates[0].ParentID)
	assert.Equal(t, "family", updates[0].FeedID)
	assert.Equal(t, int64(1), updates[0].SequenceKey)
	assert.Equal(t, []string{"Milk"}, titles(&decodeEntry(t, updates[0]).Bento))

	// a remote peer marks Milk done and adds Eggs
	done := item("t1", "Milk")
	done.Done = true
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "Groceries", done, item("t2", "Eggs")), 1))

	removed, err := s.ClearCompleted(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	flush(t, s)

	assert.Equal(t, []string{"Eggs"}, titles(s.Bento()))
	updates = mf.updates()
	require.Len(t, updates, 2)
	assert.Equal(t, int64(2), updates[1].SequenceKey)
	assert.Equal(t, []string{"Eggs"}, titles(&decodeEntry(t, updates[1]).Bento))
}

func TestStore_OperationsWithoutBento(t *testing.T) {
	s := newTestStore(t, newMemFeed())
	ctx := context.Background()

	assert.ErrorIs(t, s.AddItem(ctx, item("t1", "a"), nil, ""), ErrNoBento)
	assert.ErrorIs(t, s.UpdateItem(ctx, item("t1", "a"), ""), ErrNoBento)
	assert.ErrorIs(t, s.ReorderItem(0, 0), ErrNoBento)
	assert.ErrorIs(t, s.SortCompleted(ctx, ""), ErrNoBento)
	_, err := s.ClearCompleted(ctx, "")
	assert.ErrorIs(t, err, ErrNoBento)
	assert.ErrorIs(t, s.ApplyRemoteSnapshot(snapshot("B", "x"), 1), ErrNoBento)
	assert.Nil(t, s.Bento())
	assert.Equal(t, 0, s.ItemCount())
}

func TestStore_ApplyRemoteSnapshotIsIdempotent(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "Groceries"}, "")
	require.NoError(t, err)

	snap := snapshot("B", "Groceries", item("t1", "Milk"), item("t2", "Eggs"))
	require.NoError(t, s.ApplyRemoteSnapshot(snap, 4))
	first := s.Bento()
	require.NoError(t, s.ApplyRemoteSnapshot(snap, 4))

	assert.Equal(t, first, s.Bento())
	assert.Equal(t, int64(4), s.LastSequenceKey())

	// the store keeps its own copy
	snap.Bento.TodoItems[0].Title = "changed"
	assert.Equal(t, "Milk", s.Bento().TodoItems[0].Title)
}

func TestStore_AddItemPrependsAndAttachesImage(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "Groceries"}, "")
	require.NoError(t, err)

	require.NoError(t, s.AddItem(ctx, item("t1", "Milk"), nil, ""))
	require.NoError(t, s.AddItem(ctx, item("t2", "Eggs"), []byte("jpeg bytes"), "photo"))
	flush(t, s)

	assert.Equal(t, []string{"Eggs", "Milk"}, titles(s.Bento()))
	got, ok := s.ItemAt(0)
	require.True(t, ok)
	assert.True(t, got.HasImage)

	updates := mf.updates()
	require.Len(t, updates, 2)
	doc, err := bento.ParseDocument([]byte(updates[1].Payload))
	require.NoError(t, err)
	att, ok := bento.Attachment(doc)
	require.True(t, ok)
	assert.Equal(t, "t2", att.TodoItemUUID)
	assert.Equal(t, "photo", bento.Message(doc))

	data, err := s.Image(ctx, "", "t2")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	_, err = s.Image(ctx, "", "t1")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestStore_AddItemRejectsInvalidItem(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)

	assert.Error(t, s.AddItem(ctx, bento.TodoItem{Title: "no uuid"}, nil, ""))
	flush(t, s)
	assert.Empty(t, mf.updates())
}

func TestStore_UpdateItemKeepsPosition(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x", item("a", "A"), item("b", "B"), item("c", "C")), 3))

	changed := item("b", "Bread")
	changed.Done = true
	require.NoError(t, s.UpdateItem(ctx, changed, ""))
	flush(t, s)

	assert.Equal(t, []string{"A", "Bread", "C"}, titles(s.Bento()))
	updates := mf.updates()
	require.Len(t, updates, 1)
	assert.Equal(t, int64(4), updates[0].SequenceKey)
}

func TestStore_UpdateUnknownItemPublishesNothing(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x", item("a", "A")), 1))

	require.NoError(t, s.UpdateItem(ctx, item("zzz", "ghost"), ""))
	flush(t, s)

	assert.Equal(t, []string{"A"}, titles(s.Bento()))
	assert.Empty(t, mf.updates())
	assert.Equal(t, int64(1), s.LastSequenceKey())
}

func TestStore_ReorderItem(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"down", 0, 2, []string{"B", "C", "A", "D"}},
		{"up", 3, 1, []string{"A", "D", "B", "C"}},
		{"same", 2, 2, []string{"A", "B", "C", "D"}},
		{"to end", 1, 3, []string{"A", "C", "D", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mf := newMemFeed()
			s := newTestStore(t, mf)
			ctx := context.Background()
			_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
			require.NoError(t, err)
			require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x",
				item("a", "A"), item("b", "B"), item("c", "C"), item("d", "D")), 1))

			require.NoError(t, s.ReorderItem(tt.from, tt.to))
			assert.Equal(t, tt.want, titles(s.Bento()))

			require.NoError(t, s.ReorderItem(tt.to, tt.from))
			assert.Equal(t, []string{"A", "B", "C", "D"}, titles(s.Bento()), "reverse move restores the order")

			flush(t, s)
			assert.Empty(t, mf.updates(), "reorder alone does not publish")
		})
	}
}

func TestStore_ReorderOutOfRange(t *testing.T) {
	s := newTestStore(t, newMemFeed())
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x", item("a", "A"), item("b", "B")), 1))

	assert.ErrorIs(t, s.ReorderItem(0, 2), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.ReorderItem(-1, 0), ErrIndexOutOfRange)
	assert.Equal(t, []string{"A", "B"}, titles(s.Bento()))
}

func TestStore_SortCompletedPublishesOrder(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x", item("a", "A"), item("b", "B")), 1))

	require.NoError(t, s.ReorderItem(0, 1))
	require.NoError(t, s.SortCompleted(ctx, ""))
	flush(t, s)

	updates := mf.updates()
	require.Len(t, updates, 1)
	assert.Equal(t, []string{"B", "A"}, titles(&decodeEntry(t, updates[0]).Bento))
}

func TestStore_ClearCompleted(t *testing.T) {
	done := func(id, title string) bento.TodoItem {
		it := item(id, title)
		it.Done = true
		return it
	}

	tests := []struct {
		name        string
		items       []bento.TodoItem
		wantRemoved int
		want        []string
	}{
		{"empty", nil, 0, []string{}},
		{"none done", []bento.TodoItem{item("a", "A"), item("b", "B")}, 0, []string{"A", "B"}},
		{"all done", []bento.TodoItem{done("a", "A"), done("b", "B")}, 2, []string{}},
		{"mixed", []bento.TodoItem{done("a", "A"), item("b", "B"), done("c", "C"), item("d", "D")}, 2, []string{"B", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mf := newMemFeed()
			s := newTestStore(t, mf)
			ctx := context.Background()
			_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
			require.NoError(t, err)
			require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x", tt.items...), 1))

			removed, err := s.ClearCompleted(ctx, "")
			require.NoError(t, err)
			flush(t, s)

			assert.Equal(t, tt.wantRemoved, removed)
			assert.Equal(t, tt.want, titles(s.Bento()))
			if tt.wantRemoved == 0 {
				assert.Empty(t, mf.updates())
			} else {
				assert.Len(t, mf.updates(), 1)
			}
		})
	}
}

func TestStore_RemoveItemChangesNothing(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x", item("a", "A")), 1))

	require.NoError(t, s.RemoveItem(ctx, item("a", "A"), ""))
	flush(t, s)

	assert.Equal(t, []string{"A"}, titles(s.Bento()))
	assert.Empty(t, mf.updates())
}

func TestStore_SequenceKeysIncrease(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x"), 7))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddItem(ctx, item(id, id), nil, ""))
	}
	flush(t, s)

	var keys []int64
	for _, e := range mf.updates() {
		keys = append(keys, e.SequenceKey)
	}
	assert.Equal(t, []int64{8, 9, 10}, keys)
	assert.Equal(t, int64(10), s.LastSequenceKey())
}

func TestStore_BindToHydratesLatestState(t *testing.T) {
	mf := newMemFeed()
	rootID := mf.addRoot(t, "family", snapshot("B", "Groceries"))
	mf.addUpdate(t, rootID, 1, snapshot("B", "Groceries", item("a", "A")))
	mf.addUpdate(t, rootID, 3, snapshot("B", "Groceries", item("c", "C"), item("a", "A")))
	mf.addUpdate(t, rootID, 2, snapshot("B", "Groceries", item("b", "B")))

	s := newTestStore(t, mf)
	require.NoError(t, s.BindTo(context.Background(), rootID))

	assert.Equal(t, []string{"C", "A"}, titles(s.Bento()))
	assert.Equal(t, int64(3), s.LastSequenceKey())
	assert.Equal(t, "family", s.FeedID())
}

func TestStore_BindToUnknownRoot(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)

	err = s.BindTo(ctx, "missing")
	assert.ErrorIs(t, err, ErrRootNotFound)
	assert.False(t, s.HasBento())
	assert.Empty(t, s.RootID())
}

func TestStore_BindToSubscribeFailureLeavesStoreEmpty(t *testing.T) {
	mf := newMemFeed()
	rootID := mf.addRoot(t, "family", snapshot("B", "Groceries", item("a", "A")))
	mf.failSubscribe = errors.New("pubsub unavailable")

	s := newTestStore(t, mf)
	ctx := context.Background()

	err := s.BindTo(ctx, rootID)
	assert.ErrorContains(t, err, "pubsub unavailable")
	assert.False(t, s.HasBento())
	assert.Empty(t, s.RootID())
	assert.Empty(t, s.FeedID())
	assert.Equal(t, int64(0), s.LastSequenceKey())

	assert.ErrorIs(t, s.AddItem(ctx, item("b", "B"), nil, ""), ErrNoBento)
	flush(t, s)
	assert.Empty(t, mf.updates())

	// a later bind succeeds once the feed recovers
	mf.failSubscribe = nil
	require.NoError(t, s.BindTo(ctx, rootID))
	assert.Equal(t, []string{"A"}, titles(s.Bento()))
}

func TestStore_ApplyRemoteSnapshotRejectsNil(t *testing.T) {
	s := newTestStore(t, newMemFeed())
	_, err := s.Create(context.Background(), &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)

	assert.Error(t, s.ApplyRemoteSnapshot(nil, 4))
	assert.True(t, s.HasBento())
	assert.Equal(t, int64(0), s.LastSequenceKey())
}

func TestStore_ClearingEverythingRoundTrips(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x", CreatorID: "u1"}, "")
	require.NoError(t, err)
	done := item("a", "A")
	done.Done = true
	require.NoError(t, s.ApplyRemoteSnapshot(snapshot("B", "x", done), 1))

	removed, err := s.ClearCompleted(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	flush(t, s)

	updates := mf.updates()
	require.Len(t, updates, 1)
	assert.Equal(t, s.Bento(), &decodeEntry(t, updates[0]).Bento)
}

func TestStore_LocalParticipant(t *testing.T) {
	s := newTestStore(t, newMemFeed())
	ctx := context.Background()

	// unbound: falls back to the configured feed
	me, ok, err := s.LocalParticipant(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Kaz", me.DisplayName)
	assert.Equal(t, "u1", me.ID)

	other, err := NewStore(newMemFeed(), &fakeDirectory{}, nil, Options{FeedID: "elsewhere", LocalID: "u1", Logger: quietLogger()})
	require.NoError(t, err)
	defer other.Close()
	_, ok, err = other.LocalParticipant(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	failing, err := NewStore(newMemFeed(), &fakeDirectory{err: errors.New("directory offline")}, nil, Options{FeedID: "family", Logger: quietLogger()})
	require.NoError(t, err)
	defer failing.Close()
	_, _, err = failing.LocalParticipant(ctx)
	assert.ErrorContains(t, err, "directory offline")

	noDir, err := NewStore(newMemFeed(), nil, nil, Options{FeedID: "family", Logger: quietLogger()})
	require.NoError(t, err)
	defer noDir.Close()
	_, ok, err = noDir.LocalParticipant(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_BindToRootWithoutState(t *testing.T) {
	mf := newMemFeed()
	rootID, err := mf.Append(context.Background(), &feed.Entry{FeedID: "family", Type: feed.EntryTypeBentoRoot, Payload: `{"text":"hi"}`})
	require.NoError(t, err)

	s := newTestStore(t, mf)
	require.NoError(t, s.BindTo(context.Background(), rootID))

	assert.False(t, s.HasBento())
	assert.Equal(t, rootID, s.RootID())
}

func TestStore_ResetClearsEverything(t *testing.T) {
	mf := newMemFeed()
	s := newTestStore(t, mf)
	ctx := context.Background()
	_, err := s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	require.NoError(t, s.LoadCatalog(ctx))
	require.True(t, s.Members().Cached("family"))

	s.Reset()

	assert.False(t, s.HasBento())
	assert.Empty(t, s.RootID())
	assert.Equal(t, int64(0), s.LastSequenceKey())
	assert.Equal(t, 0, s.CatalogCount())
	assert.False(t, s.Members().Cached("family"))
}

func TestStore_ClosedStore(t *testing.T) {
	s := newTestStore(t, newMemFeed())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Create(context.Background(), &bento.Bento{UUID: "B", Name: "x"}, "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.BindTo(context.Background(), "any"), ErrClosed)
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
}

func TestStore_CloseDrainsPendingPublishes(t *testing.T) {
	mf := newMemFeed()
	s, err := NewStore(mf, nil, nil, Options{FeedID: "family", LocalID: "u1", Logger: quietLogger()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Create(ctx, &bento.Bento{UUID: "B", Name: "x"}, "")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.AddItem(ctx, item(id, id), nil, ""))
	}
	require.NoError(t, s.Close())

	assert.Len(t, mf.updates(), 4)
}

func TestNewStore_RequiresFeed(t *testing.T) {
	_, err := NewStore(nil, nil, nil, Options{})
	assert.Error(t, err)
}
