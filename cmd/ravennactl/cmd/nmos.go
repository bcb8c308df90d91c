package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ravennakit/ravennakit/internal/nmos"
)

func init() {
	RootCmd.AddCommand(selfCmd)
	RootCmd.AddCommand(receiversCmd)
}

var selfCmd = &cobra.Command{
	Use:   "self",
	Short: "Print the node's IS-04 self-description",
	RunE: func(_ *cobra.Command, _ []string) error {
		ConfigureVerbosity()

		var self nmos.Self
		if err := fetchJSON("/x-nmos/node/v1.3/self", &self); err != nil {
			return err
		}
		return printJSON(self)
	},
}

var receiversCmd = &cobra.Command{
	Use:   "receivers",
	Short: "Print the node's IS-04 receiver list",
	RunE: func(_ *cobra.Command, _ []string) error {
		ConfigureVerbosity()

		var receivers []nmos.Receiver
		if err := fetchJSON("/x-nmos/node/v1.3/receivers", &receivers); err != nil {
			return err
		}
		return printJSON(receivers)
	},
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
