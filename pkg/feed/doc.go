// Package feed provides a Redis-backed append-only conversation feed for
// replicated Bento state.
//
// # Overview
//
// Every Bento lives in a conversation feed. Its first write is a root entry
// (type "todobento") whose ID is the Bento's storage identity. Every later
// mutation is a full-state child entry (type "appstate") appended under the
// root with a sequence key chosen by the writer. Readers recover the latest
// state by taking the child with the highest sequence key.
//
// Entries are immutable. The feed does not interpret payloads; it stores the
// document JSON text as-is.
//
// # Redis Schema
//
// All keys follow the pattern: bento:{instance_name}:{entity}:{id}
//
// Entries: bento:{instance_name}:entry:{entry_id} (hash)
// Children: bento:{instance_name}:children:{parent_id}:{type} (ZSET, score = sequence key)
// History: bento:{instance_name}:history:{parent_id} (LIST, append order)
// Roots: bento:{instance_name}:roots:{feed_id} (ZSET, score = timestamp)
// Feeds: bento:{instance_name}:feeds (SET)
// Members: bento:{instance_name}:members:{feed_id} (hash, id → display name)
//
// Pub/Sub channel per root: bento:{instance_name}:entries:{parent_id}
//
// # Ordering
//
// Sequence keys are assigned without coordination. Two writers may publish the
// same key; both entries are kept, and LatestChild returns whichever Redis
// sorts last among equal scores. The feed does not detect or resolve this.
//
// # Usage Example
//
//	client, err := feed.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	rootID, err := client.Append(ctx, &feed.Entry{
//		FeedID:  "family",
//		Type:    feed.EntryTypeBentoRoot,
//		Payload: `{"state":{...}}`,
//	})
//
//	sub, err := client.Subscribe(ctx, rootID)
//	defer sub.Close()
//	for entry := range sub.Events() {
//		fmt.Println(entry.SequenceKey)
//	}
package feed
