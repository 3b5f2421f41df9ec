// Package replica keeps the local replica of one active Bento in step with its
// conversation feed.
//
// Local mutations change the in-memory Bento and post a full snapshot to the
// feed. Every replica, the author's included, observes new entries through a
// bridge that filters them and replaces the in-memory Bento wholesale. There is
// no field-level merge: the last snapshot applied wins.
package replica

import (
	"context"
	"errors"
	"image"

	"github.com/dyluth/bento/pkg/feed"
)

// Feed is the append-only feed collaborator. *feed.Client implements it.
type Feed interface {
	Append(ctx context.Context, e *feed.Entry) (string, error)
	Get(ctx context.Context, entryID string) (*feed.Entry, error)
	LatestChild(ctx context.Context, parentID string, t feed.EntryType) (*feed.Entry, error)
	History(ctx context.Context, parentID string) ([]*feed.Entry, error)
	ListRoots(ctx context.Context) ([]*feed.Entry, error)
	Subscribe(ctx context.Context, parentID string) (*feed.Subscription, error)
}

// Directory resolves feed membership. *feed.Directory implements it.
type Directory interface {
	MembersOf(ctx context.Context, feedID string) ([]feed.Member, error)
	Local(ctx context.Context, feedID string) (feed.Member, bool, error)
}

// ImageCodec converts image attachments. *imaging.Codec implements it.
type ImageCodec interface {
	Encode(data []byte) string
	Decode(text string) ([]byte, error)
	Thumbnail(data []byte, width, height int, degrees float64) (image.Image, error)
}

var (
	// ErrNoBento is returned by operations that need an active Bento.
	ErrNoBento = errors.New("no active bento")

	// ErrRootNotFound is returned when binding to an identity the feed does not know.
	ErrRootNotFound = errors.New("bento root entry not found")

	// ErrIndexOutOfRange is returned by positional operations with a bad index.
	ErrIndexOutOfRange = errors.New("todo index out of range")

	// ErrImageNotFound is returned when no history entry carries the requested image.
	ErrImageNotFound = errors.New("todo image not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)
