package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the node's health and PTP port state",
	RunE: func(_ *cobra.Command, _ []string) error {
		ConfigureVerbosity()

		var out map[string]any
		if err := fetchJSON("/health", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}
