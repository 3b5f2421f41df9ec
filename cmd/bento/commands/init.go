package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/bento/internal/config"
	"github.com/dyluth/bento/internal/printer"
	"github.com/spf13/cobra"
)

var (
	initForce bool
	initID    string
	initName  string
	initFeed  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter bento.yml",
	Long: `Write a starter bento.yml for the local participant.

The file is written to the --config path (default ./bento.yml). Values can
reference environment variables as ${VAR}; REDIS_URL always overrides
redis.url.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing bento.yml")
	initCmd.Flags().StringVar(&initID, "id", "", "Participant ID (required)")
	initCmd.Flags().StringVar(&initName, "name", "", "Participant display name (required)")
	initCmd.Flags().StringVar(&initFeed, "feed", "", "Conversation feed new bentos are created in (required)")
	_ = initCmd.MarkFlagRequired("id")
	_ = initCmd.MarkFlagRequired("name")
	_ = initCmd.MarkFlagRequired("feed")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return printer.Error(
			fmt.Sprintf("%s already exists", configPath),
			"Refusing to overwrite the existing configuration.",
			[]string{"Overwrite it:\n  bento init --force ..."},
		)
	}

	data, err := config.Example(initID, initName, initFeed)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	printer.Success("Wrote %s\n", configPath)
	printer.Info("\nNext: join the feed so others see your name\n  bento join\n")
	return nil
}
