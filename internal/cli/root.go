package cli

import (
	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "bethatfriend",
	Short: "Never miss a friend's important date",
	Long: "bethatfriend keeps a mutually confirmed circle of friends, their birthdays and " +
		"anniversaries, and emails everyone in the circle when one of those days comes around.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "load environment from these files instead of ./.env")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}
