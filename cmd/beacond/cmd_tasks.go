package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type taskListEntry struct {
	Name string `json:"name"`
}

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "list and trigger scheduled tasks",
	}
	cmd.AddCommand(newTasksListCmd())
	cmd.AddCommand(newTasksRunCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list every registered task",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newDaemonClient(configPath)
			if err != nil {
				return err
			}
			var tasks []taskListEntry
			if err := c.get("/tasks", &tasks); err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Println(t.Name)
			}
			return nil
		},
	}
}

func newTasksRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "trigger a task immediately, bypassing the idle gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newDaemonClient(configPath)
			if err != nil {
				return err
			}
			var resp map[string]string
			if err := c.post("/tasks/"+args[0]+"/run", nil, &resp); err != nil {
				return err
			}
			if resp["status"] == "error" {
				return fmt.Errorf("beacond: %s", resp["error"])
			}
			fmt.Printf("triggered %s\n", args[0])
			return nil
		},
	}
}
