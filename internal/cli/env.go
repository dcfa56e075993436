// Package cli - env.go implements the "deployctl env" command.
//
// The env command reports which variables the service reads are set in
// the environment the build and start hooks will pass through: PORT first,
// then the catalog (built in, extended by the deploy file). Secret values
// are masked. Nothing is validated; a missing key is informational.
package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/deployctl/internal/config"
)

// NewEnvCommand creates the "env" command.
func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the pass-through environment the service will see",
		Long: `List PORT and the catalog of variables the service reads, whether each
is set, and its value. Secret values are masked.

deployctl never validates these variables; a missing credential is the
service's concern. The list is informational.

Examples:
  deployctl env
  deployctl env --env-file .env --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Step 1: Resolve the environment with the env file merged in.
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Step 2: Build and print the report.
			entries := envReport(cfg)
			if IsJSONOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{"variables": entries})
			}
			printEnvTable(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

// envEntry is one row of the env report.
type envEntry struct {
	Key         string `json:"key"`
	Set         bool   `json:"set"`
	Value       string `json:"value"`
	Secret      bool   `json:"secret"`
	Description string `json:"description,omitempty"`
}

// envReport lists PORT followed by the catalog in key order. Secret
// values are masked.
func envReport(cfg *config.Config) []envEntry {
	catalog := cfg.Catalog()
	entries := make([]envEntry, 0, len(catalog)+1)

	portValue, portSet := config.LookupEnviron(cfg.Environ, "PORT")
	portEntry := envEntry{
		Key:         "PORT",
		Set:         portSet && portValue != "",
		Value:       portValue,
		Description: "server port (default " + strconv.Itoa(cfg.DefaultPort()) + ")",
	}
	entries = append(entries, portEntry)

	for _, v := range catalog {
		value, ok := config.LookupEnviron(cfg.Environ, v.Key)
		entries = append(entries, envEntry{
			Key:         v.Key,
			Set:         ok && value != "",
			Value:       v.MaskValue(value),
			Secret:      v.Secret,
			Description: v.Description,
		})
	}
	return entries
}

func printEnvTable(w io.Writer, entries []envEntry) {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Status", "Value", "Description")

	unset := 0
	for _, e := range entries {
		status := "set"
		if !e.Set {
			status = "unset"
			unset++
		}
		table.Append(e.Key, status, e.Value, e.Description)
	}
	table.Render()

	if unset > 0 {
		fmt.Fprintf(w, "\n%d of %d variables unset.\n", unset, len(entries))
	}
}
