// Command beacond runs the daemon: it loads configuration, wires every
// kernel subsystem together, and serves the unified HTTP front end until
// told to stop (spec.md §1 Overview).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "beacond",
		Short: "beacond is the personal-assistant daemon wrapping an interactive LLM session",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the daemon's YAML configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newApproveCmd())
	root.AddCommand(newTasksCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
