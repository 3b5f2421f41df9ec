package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/bento/internal/printer"
	"github.com/dyluth/bento/pkg/bento"
	"github.com/spf13/cobra"
)

var createMessage string

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new bento in the configured feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createMessage, "message", "m", "", "Text posted with the bento")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	b := bento.New(args[0], s.cfg.Participant.ID)
	message := createMessage
	if message == "" {
		message = fmt.Sprintf("%s created %s", s.cfg.Participant.Name, b.Name)
	}

	rootID, err := s.store.Create(ctx, b, message)
	if err != nil {
		return fmt.Errorf("failed to create bento: %w", err)
	}

	printer.Success("Created bento '%s' in feed '%s'\n", b.Name, s.cfg.Feed)
	printer.Info("  id: %s\n", rootID)
	return nil
}
