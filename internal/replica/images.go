package replica

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/dyluth/bento/pkg/bento"
)

// Image returns the raw bytes of the image attached to todoUUID by scanning
// the full history of rootID in append order ("" means the bound root).
// The first entry carrying the attachment wins. Nothing is cached, so every
// call repeats the scan.
func (s *Store) Image(ctx context.Context, rootID, todoUUID string) ([]byte, error) {
	if s.images == nil {
		return nil, fmt.Errorf("no image codec configured")
	}
	if rootID == "" {
		rootID = s.RootID()
		if rootID == "" {
			return nil, ErrNoBento
		}
	}

	history, err := s.feed.History(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", rootID, err)
	}

	for _, entry := range history {
		doc, err := bento.ParseDocument([]byte(entry.Payload))
		if err != nil {
			continue
		}
		att, ok := bento.Attachment(doc)
		if !ok || att.TodoItemUUID != todoUUID {
			continue
		}

		data, err := s.images.Decode(att.EncodedImageData)
		if err != nil {
			s.log.Warn("undecodable todo image",
				slog.String("entry_id", entry.ID),
				slog.String("todo_uuid", todoUUID),
				slog.String("error", err.Error()))
			return nil, err
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrImageNotFound, todoUUID)
}

// Thumbnail looks up the image of todoUUID and renders it to fit
// width x height, rotated clockwise by degrees.
func (s *Store) Thumbnail(ctx context.Context, rootID, todoUUID string, width, height int, degrees float64) (image.Image, error) {
	data, err := s.Image(ctx, rootID, todoUUID)
	if err != nil {
		return nil, err
	}
	return s.images.Thumbnail(data, width, height, degrees)
}
