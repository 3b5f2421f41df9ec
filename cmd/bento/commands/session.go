package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/bento/internal/config"
	"github.com/dyluth/bento/internal/imaging"
	"github.com/dyluth/bento/internal/printer"
	"github.com/dyluth/bento/internal/replica"
	"github.com/dyluth/bento/internal/resolver"
	"github.com/dyluth/bento/pkg/bento"
	"github.com/dyluth/bento/pkg/feed"
	"github.com/redis/go-redis/v9"
)

// flushTimeout bounds how long a command waits for queued publishes on exit.
const flushTimeout = 5 * time.Second

// session is one connected replica for the lifetime of a command.
type session struct {
	cfg    *config.BentoConfig
	log    *slog.Logger
	client *feed.Client
	dir    *feed.Directory
	images *imaging.Codec
	store  *replica.Store
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, printer.Error(
				"bento.yml not found",
				fmt.Sprintf("No configuration at %s.", configPath),
				[]string{"Create one:\n  bento init --id <participant-id> --name <display-name> --feed <feed>"},
			)
		}
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := feed.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			"Could not reach the feed.",
			map[string]string{"Redis": cfg.Redis.URL, "Instance": cfg.Instance},
			[]string{"Check that Redis is running and REDIS_URL or redis.url is correct."},
		)
	}

	dir := feed.NewDirectory(client, cfg.Participant.ID)
	images := imaging.NewCodec()

	store, err := replica.NewStore(client, dir, images, replica.Options{
		FeedID:      cfg.Feed,
		LocalID:     cfg.Participant.ID,
		VersionCode: cfg.VersionCode,
		Logger:      logger,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	return &session{cfg: cfg, log: logger, client: client, dir: dir, images: images, store: store}, nil
}

// Close flushes pending publishes and disconnects.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.store.Flush(ctx); err != nil && !errors.Is(err, replica.ErrClosed) {
		s.log.Warn("failed to flush pending updates", slog.String("error", err.Error()))
	}
	s.store.Close()
	s.client.Close()
}

// resolveRoot turns a short ID argument into a full root ID, rendering
// resolver errors for the user.
func (s *session) resolveRoot(ctx context.Context, shortID string) (string, error) {
	rootID, err := resolver.ResolveRootID(ctx, s.client, shortID)
	if err == nil {
		return rootID, nil
	}

	var amb *resolver.AmbiguousError
	switch {
	case resolver.IsNotFoundError(err):
		return "", printer.Error(
			fmt.Sprintf("bento '%s' not found", shortID),
			"No bento root entry matches this ID.",
			[]string{"List bentos:\n  bento list"},
		)
	case errors.As(err, &amb):
		return "", printer.Error("ambiguous bento ID", resolver.FormatAmbiguousError(amb), nil)
	default:
		return "", fmt.Errorf("failed to resolve bento ID: %w", err)
	}
}

// bind resolves shortID and makes that bento the active one.
func (s *session) bind(ctx context.Context, shortID string) error {
	rootID, err := s.resolveRoot(ctx, shortID)
	if err != nil {
		return err
	}
	if err := s.store.BindTo(ctx, rootID); err != nil {
		return fmt.Errorf("failed to load bento: %w", err)
	}
	if !s.store.HasBento() {
		return printer.Error(
			"bento has no usable state",
			fmt.Sprintf("The latest entry of %s could not be decoded.", rootID),
			nil,
		)
	}
	return nil
}

// parseIndex reads a list index in base 10, so "010" is 10.
func parseIndex(arg string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(arg))
}

// item finds a todo of the active bento by list index or uuid prefix.
func (s *session) item(arg string) (bento.TodoItem, int, error) {
	if i, err := parseIndex(arg); err == nil {
		if it, ok := s.store.ItemAt(i); ok {
			return it, i, nil
		}
		return bento.TodoItem{}, -1, printer.Error(
			fmt.Sprintf("no todo at index %d", i),
			fmt.Sprintf("The list has %d items.", s.store.ItemCount()),
			nil,
		)
	}

	b := s.store.Bento()
	found := -1
	for i, it := range b.TodoItems {
		if strings.HasPrefix(it.UUID, arg) {
			if found >= 0 {
				return bento.TodoItem{}, -1, printer.Error("ambiguous todo ID", fmt.Sprintf("'%s' matches more than one todo.", arg), nil)
			}
			found = i
		}
	}
	if found < 0 {
		return bento.TodoItem{}, -1, printer.Error(fmt.Sprintf("todo '%s' not found", arg), "No todo has this index or ID.", nil)
	}
	return b.TodoItems[found], found, nil
}

func (s *session) nowMillis() int64 {
	return time.Now().UnixMilli()
}
