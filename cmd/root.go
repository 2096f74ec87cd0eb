// Package cmd is the forum-keeper command line.
package cmd

import (
	"fmt"
	"os"

	"forum-keeper/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "forum-keeper",
	Short: "Keeps a Discord help forum tidy",
	Long: `forum-keeper tracks the threads of a Discord help forum:
it locks threads marked resolved after a grace period, warns the owner
of threads that went quiet and closes them when nobody answers.

Examples:
  forum-keeper run                     # Connect to Discord and run the sweeps
  forum-keeper sweep                   # Run both sweeps once and exit
  forum-keeper settings list           # Show configured guilds
  forum-keeper health                  # Check a running instance`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadConfig(v, configFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default ./config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(healthCmd)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
