package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/bento/internal/listing"
	"github.com/dyluth/bento/internal/printer"
	"github.com/dyluth/bento/internal/replica"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchOutputFormat string

const watchPingInterval = 15 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch BENTO_ID",
	Short: "Follow a bento as other members change it",
	Long: `Follow a bento and print it again whenever a new snapshot is applied.

Every state entry seen on the feed is reported, including ones for other
bentos that were ignored.

Output Formats:
  default - Reprint the todo table after each applied update
  jsonl   - One notification per line`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := listing.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	updates := make(chan replica.Update, 16)
	id := s.store.Notifier().Subscribe(replica.ListenerFunc(func(u replica.Update) {
		select {
		case updates <- u:
		default:
			// the printer is behind; the next update reprints everything anyway
		}
	}))
	defer s.store.Notifier().Unsubscribe(id)

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}

	if format == listing.OutputFormatDefault {
		listing.FormatTodos(out(), s.store.Bento(), time.Now())
		printer.Step("watching %s, press Ctrl-C to stop\n", s.store.RootID()[:8])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return printUpdates(gctx, s.store, updates, format)
	})
	g.Go(func() error {
		return keepAlive(gctx, s)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// keepAlive pings the feed so a lost connection ends the watch instead of
// leaving it silently idle.
func keepAlive(ctx context.Context, s *session) error {
	ticker := time.NewTicker(watchPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.client.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return printer.Error("lost connection to the feed", err.Error(), nil)
			}
		}
	}
}

func printUpdates(ctx context.Context, store *replica.Store, updates <-chan replica.Update, format listing.OutputFormat) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-updates:
			if format == listing.OutputFormatJSONL {
				if err := listing.FormatJSONL(out(), []replica.Update{u}); err != nil {
					return err
				}
				continue
			}

			if !u.Applied {
				printer.Default.Muted("ignored entry %s (bento %s)\n", u.EntryID, u.BentoUUID)
				continue
			}
			fmt.Fprintln(out())
			printer.Step("update #%d\n", u.SequenceKey)
			if b := store.Bento(); b != nil {
				listing.FormatTodos(out(), b, time.Now())
			}
		}
	}
}
