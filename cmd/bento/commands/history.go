package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/bento/internal/listing"
	"github.com/dyluth/bento/internal/printer"
	"github.com/dyluth/bento/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	historyOutputFormat string
	historySince        string
	historyUntil        string
)

var historyCmd = &cobra.Command{
	Use:   "history BENTO_ID",
	Short: "List the state updates posted to a bento",
	Long: `List every entry posted under a bento root in append order.

Time Filters:
  --since  - Show entries posted at or after this time
  --until  - Show entries posted before this time

Examples:
  # Everything from the last two hours
  bento history 3fa85f --since=2h

  # Pipe to jq
  bento history 3fa85f -o jsonl | jq 'select(.image_for != null)'`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Show entries after time (duration or RFC3339)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "Show entries before time (duration or RFC3339)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := listing.ParseOutputFormat(historyOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	now := time.Now()
	window, err := timespec.ParseRange(historySince, historyUntil, now)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}

	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	rootID, err := s.resolveRoot(ctx, args[0])
	if err != nil {
		return err
	}

	entries, err := s.client.History(ctx, rootID)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	rows := listing.FilterHistory(entries, window)
	if format == listing.OutputFormatJSONL {
		return listing.FormatJSONL(out(), rows)
	}
	listing.FormatHistory(out(), rows, now)
	return nil
}
