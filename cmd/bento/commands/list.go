package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/bento/internal/listing"
	"github.com/dyluth/bento/internal/printer"
	"github.com/spf13/cobra"
)

var listOutputFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every known bento grouped by feed",
	Long: `List every bento root on the feed with its current name and todo count.

Bentos are grouped by conversation feed; each group is headed by the names of
the other members of that feed.

Output Formats:
  default - Human-readable table
  jsonl   - One catalog row per line, dividers included`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := listing.ParseOutputFormat(listOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.store.LoadCatalog(ctx); err != nil {
		return fmt.Errorf("failed to load bentos: %w", err)
	}

	rows := s.store.Catalog()
	if format == listing.OutputFormatJSONL {
		return listing.FormatJSONL(out(), rows)
	}
	listing.FormatCatalog(out(), rows, s.cfg.Instance)
	return nil
}
