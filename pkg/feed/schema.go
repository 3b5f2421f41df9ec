package feed

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several independent deployments can share one Redis server.
//
// Key pattern: bento:{instance_name}:{entity}:{id}
// Channel pattern: bento:{instance_name}:entries:{parent_id}

// EntryKey returns the Redis key for an entry hash.
// Pattern: bento:{instance_name}:entry:{entry_id}
func EntryKey(instanceName, entryID string) string {
	return fmt.Sprintf("bento:%s:entry:%s", instanceName, entryID)
}

// ChildrenKey returns the Redis key for the ZSET of a root's children of one type.
// Scores are sequence keys.
// Pattern: bento:{instance_name}:children:{parent_id}:{type}
func ChildrenKey(instanceName, parentID string, t EntryType) string {
	return fmt.Sprintf("bento:%s:children:%s:%s", instanceName, parentID, t)
}

// HistoryKey returns the Redis key for the append-ordered list of a root's children.
// Pattern: bento:{instance_name}:history:{parent_id}
func HistoryKey(instanceName, parentID string) string {
	return fmt.Sprintf("bento:%s:history:%s", instanceName, parentID)
}

// RootsKey returns the Redis key for the ZSET of root entries in a feed.
// Scores are append timestamps.
// Pattern: bento:{instance_name}:roots:{feed_id}
func RootsKey(instanceName, feedID string) string {
	return fmt.Sprintf("bento:%s:roots:%s", instanceName, feedID)
}

// FeedsKey returns the Redis key for the set of known conversation feeds.
// Pattern: bento:{instance_name}:feeds
func FeedsKey(instanceName string) string {
	return fmt.Sprintf("bento:%s:feeds", instanceName)
}

// MembersKey returns the Redis key for a feed's membership hash (id → display name).
// Pattern: bento:{instance_name}:members:{feed_id}
func MembersKey(instanceName, feedID string) string {
	return fmt.Sprintf("bento:%s:members:%s", instanceName, feedID)
}

// EntriesChannel returns the Pub/Sub channel carrying new children of a root.
// Pattern: bento:{instance_name}:entries:{parent_id}
func EntriesChannel(instanceName, parentID string) string {
	return fmt.Sprintf("bento:%s:entries:%s", instanceName, parentID)
}

// SequenceScore converts a sequence key to a ZSET score.
func SequenceScore(key int64) float64 {
	return float64(key)
}

// SequenceFromScore converts a ZSET score back to a sequence key.
func SequenceFromScore(score float64) int64 {
	return int64(score)
}
