package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"forum-keeper/database"
	"forum-keeper/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var settingsJSON bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect per-guild settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured guilds",
	Long: `List every guild with settings in the database.

Examples:
  forum-keeper settings list
  forum-keeper settings list --json`,
	RunE: runSettingsList,
}

func init() {
	settingsListCmd.Flags().BoolVar(&settingsJSON, "json", false, "Output in JSON format")
	settingsCmd.AddCommand(settingsListCmd)
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(v)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := database.OpenWithRetry(cmd.Context(), v.GetString("database.path"), logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("database close failed", zap.Error(err))
		}
	}()

	guilds, err := store.ListSettings(cmd.Context())
	if err != nil {
		return err
	}
	if settingsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(guilds)
	}
	return writeSettingsTable(cmd.OutOrStdout(), guilds)
}

func writeSettingsTable(w io.Writer, guilds []models.GuildSettings) error {
	if len(guilds) == 0 {
		_, err := fmt.Fprintln(w, "No guilds configured.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GUILD\tNAME\tFORUM\tRESOLVED\tDUPLICATE\tUNANSWERED\tHELPER ROLES")
	for _, g := range guilds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			g.GuildID, g.GuildName, g.ForumChannelID, g.ResolvedTagID, g.DuplicateTagID,
			dash(g.UnansweredTag), dash(strings.Join(g.HelperRoleIDs, ",")))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
