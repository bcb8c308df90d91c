// Package cmd implements the ravennactl command tree: inspection commands
// that query a running ravennad over its HTTP façade. Exported so
// ravennactl can be extended without touching core functionality, matching
// ptpcheck/cmd's RootCmd pattern.
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is ravennactl's main entry point.
var RootCmd = &cobra.Command{
	Use:   "ravennactl",
	Short: "Inspect a running ravennad node",
}

var rootVerboseFlag bool
var rootAddrFlag string

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVarP(&rootAddrFlag, "addr", "a", "http://localhost:8080", "ravennad HTTP address")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Every
// subcommand must call this before doing work.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is ravennactl's main entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
