// Command rescache inspects and maintains a research cache directory: stats,
// category clears, and checkpoint resume queries for interrupted runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "rescache",
		Short:         "Inspect and maintain a persistent research cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")

	root.AddCommand(newStatsCmd())
	root.AddCommand(newClearCmd())
	root.AddCommand(newResumeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rescache:", err)
		os.Exit(1)
	}
}
