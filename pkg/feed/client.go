package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the feed.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	now          func() time.Time
}

// NewClient creates a new feed client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		now:          time.Now,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the namespace used for keys and channels.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// RedisClient exposes the underlying Redis client for scans and tests.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// Append writes an entry and publishes it to the parent's entries channel.
// A missing ID is generated, a missing timestamp is set to now, and a state
// update without a feed ID inherits it from its parent root.
//
// Sequence keys are stored as ZSET scores and are not checked for uniqueness:
// two writers racing on the same key both succeed.
func (c *Client) Append(ctx context.Context, e *Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.TimestampMs == 0 {
		e.TimestampMs = c.now().UnixMilli()
	}
	if e.FeedID == "" && e.ParentID != "" {
		parent, err := c.Get(ctx, e.ParentID)
		if err != nil {
			if IsNotFound(err) {
				return "", fmt.Errorf("parent entry not found: %s", e.ParentID)
			}
			return "", fmt.Errorf("failed to read parent entry: %w", err)
		}
		e.FeedID = parent.FeedID
	}

	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("invalid entry: %w", err)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, EntryKey(c.instanceName, e.ID), EntryToHash(e))
		if e.IsRoot() {
			pipe.SAdd(ctx, FeedsKey(c.instanceName), e.FeedID)
			pipe.ZAdd(ctx, RootsKey(c.instanceName, e.FeedID), redis.Z{
				Score:  float64(e.TimestampMs),
				Member: e.ID,
			})
			return nil
		}
		pipe.ZAdd(ctx, ChildrenKey(c.instanceName, e.ParentID, e.Type), redis.Z{
			Score:  SequenceScore(e.SequenceKey),
			Member: e.ID,
		})
		pipe.RPush(ctx, HistoryKey(c.instanceName, e.ParentID), e.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write entry to Redis: %w", err)
	}

	if e.IsRoot() {
		return e.ID, nil
	}

	entryJSON, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry for event: %w", err)
	}
	if err := c.rdb.Publish(ctx, EntriesChannel(c.instanceName, e.ParentID), entryJSON).Err(); err != nil {
		return "", fmt.Errorf("failed to publish entry event: %w", err)
	}

	return e.ID, nil
}

// Get retrieves an entry by ID.
// Returns (nil, redis.Nil) if the entry doesn't exist.
func (c *Client) Get(ctx context.Context, entryID string) (*Entry, error) {
	hashData, err := c.rdb.HGetAll(ctx, EntryKey(c.instanceName, entryID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read entry from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	entry, err := HashToEntry(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize entry: %w", err)
	}
	return entry, nil
}

// LatestChild retrieves the child of parentID with the highest sequence key.
// Entries sharing a key are ordered by Redis (member order); the last one wins.
// Returns (nil, redis.Nil) if the parent has no children of that type.
func (c *Client) LatestChild(ctx context.Context, parentID string, t EntryType) (*Entry, error) {
	results, err := c.rdb.ZRevRangeWithScores(ctx, ChildrenKey(c.instanceName, parentID, t), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query latest child: %w", err)
	}
	if len(results) == 0 {
		return nil, redis.Nil
	}

	entryID, ok := results[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected child member type %T", results[0].Member)
	}
	return c.Get(ctx, entryID)
}

// History returns every child of parentID in append order.
// Children whose hash has gone missing are skipped.
func (c *Client) History(ctx context.Context, parentID string) ([]*Entry, error) {
	ids, err := c.rdb.LRange(ctx, HistoryKey(c.instanceName, parentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := c.Get(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListRoots returns all root entries ordered by feed ID ascending, then by
// append timestamp ascending.
func (c *Client) ListRoots(ctx context.Context) ([]*Entry, error) {
	feeds, err := c.rdb.SMembers(ctx, FeedsKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	sort.Strings(feeds)

	var roots []*Entry
	for _, feedID := range feeds {
		ids, err := c.rdb.ZRange(ctx, RootsKey(c.instanceName, feedID), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list roots of feed %s: %w", feedID, err)
		}
		for _, id := range ids {
			entry, err := c.Get(ctx, id)
			if err != nil {
				if IsNotFound(err) {
					continue
				}
				return nil, err
			}
			roots = append(roots, entry)
		}
	}
	return roots, nil
}

// ScanRoots returns the IDs of root entries that start with prefix.
func (c *Client) ScanRoots(ctx context.Context, prefix string) ([]string, error) {
	roots, err := c.ListRoots(ctx)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, root := range roots {
		if strings.HasPrefix(root.ID, prefix) {
			matches = append(matches, root.ID)
		}
	}
	return matches, nil
}

// Subscription represents an active Pub/Sub subscription to a root's children.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Entry
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of appended entries.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Entry {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
// The subscription continues after errors; the offending message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// NewSubscription wraps caller-owned channels in a Subscription so that other
// feed implementations can hand out the same type. cancel is called once on Close.
func NewSubscription(events <-chan *Entry, errs <-chan error, cancel func()) *Subscription {
	if cancel == nil {
		cancel = func() {}
	}
	return &Subscription{events: events, errors: errs, cancel: cancel}
}

// Subscribe subscribes to entries appended under parentID.
// The subscription is confirmed by Redis before Subscribe returns, so any
// entry appended afterwards is delivered. Delivery is at-most-once.
func (c *Client) Subscribe(ctx context.Context, parentID string) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EntriesChannel(c.instanceName, parentID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to entries: %w", err)
	}

	eventsChan := make(chan *Entry, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var entry Entry
				if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal entry event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &entry:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
