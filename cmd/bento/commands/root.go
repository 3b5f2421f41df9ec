package commands

import (
	"fmt"

	"github.com/dyluth/bento/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bento",
	Short: "Bento - shared todo lists over a conversation feed",
	Long: `Bento keeps shared todo lists ("bentos") in step between the members of a
conversation feed.

Every change publishes a full snapshot of the list to the feed. Each replica
follows the feed and adopts the snapshot with the highest sequence key, so
all members converge on the same list without a coordination server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Cobra's own error output is silenced because
// the printer package renders errors.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to bento.yml")
}
