package commands

import (
	"context"
	"strings"
	"time"

	"github.com/dyluth/bento/internal/listing"
	"github.com/dyluth/bento/internal/printer"
	"github.com/dyluth/bento/pkg/bento"
	"github.com/spf13/cobra"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show BENTO_ID",
	Short: "Show the todos of a bento",
	Long: `Show the current todos of a bento in their shared order.

BENTO_ID may be a short prefix of at least 6 characters.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the state snapshot as JSON")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}

	b := s.store.Bento()
	if showJSON {
		return listing.FormatSingleJSON(out(), bento.Encode(&bento.StateSnapshot{
			SchemaVersion: s.cfg.VersionCode,
			Bento:         *b,
		}))
	}

	listing.FormatTodos(out(), b, time.Now())
	if names, err := s.store.MemberNames(ctx, s.store.FeedID()); err == nil && len(names) > 0 {
		printer.Default.Muted("\nshared with %s\n", strings.Join(names, ", "))
	}
	if me, ok, err := s.store.LocalParticipant(ctx); err == nil && ok {
		printer.Default.Muted("viewing as %s\n", me.DisplayName)
	}
	return nil
}
