package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/bento/internal/printer"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join [FEED]",
	Short: "Register the local participant as a member of a feed",
	Long: `Register the local participant (participant.id / participant.name in
bento.yml) as a member of FEED, or of the configured feed when omitted.

Member names are shown as group headings by 'bento list'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	feedID := s.cfg.Feed
	if len(args) == 1 {
		feedID = args[0]
	}

	if err := s.dir.Join(ctx, feedID, s.cfg.Participant.ID, s.cfg.Participant.Name); err != nil {
		return fmt.Errorf("failed to join feed: %w", err)
	}
	printer.Success("%s joined feed '%s'\n", s.cfg.Participant.Name, feedID)

	names, err := s.store.MemberNames(ctx, feedID)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		printer.Info("  also here: %s\n", strings.Join(names, ", "))
	}
	return nil
}
