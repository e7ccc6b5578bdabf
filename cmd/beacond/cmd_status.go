package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusResponse struct {
	Idle          bool   `json:"idle"`
	UpdatedAt     string `json:"updated_at"`
	SessionExists bool   `json:"session_exists"`
	ActiveChannel string `json:"active_channel"`
	VoicePending  bool   `json:"voice_pending"`

	ScheduledTasks []struct {
		Name         string `json:"name"`
		SuccessCount int    `json:"success_count"`
		FailureCount int    `json:"failure_count"`
		LastError    string `json:"last_error,omitempty"`
	} `json:"scheduled_tasks,omitempty"`
	RegisteredTasks []string `json:"registered_tasks,omitempty"`
	Peers           []struct {
		Name   string `json:"name"`
		Online bool   `json:"online"`
	} `json:"peers,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var extended bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "print the running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newDaemonClient(configPath)
			if err != nil {
				return err
			}
			endpoint := "/status"
			if extended {
				endpoint = "/status/extended"
			}
			var resp statusResponse
			if err := c.get(endpoint, &resp); err != nil {
				return err
			}

			fmt.Printf("idle:           %v\n", resp.Idle)
			fmt.Printf("session exists: %v\n", resp.SessionExists)
			fmt.Printf("active channel: %s\n", resp.ActiveChannel)
			fmt.Printf("voice pending:  %v\n", resp.VoicePending)
			if !extended {
				return nil
			}
			fmt.Println("\nscheduled tasks:")
			for _, t := range resp.ScheduledTasks {
				fmt.Printf("  %-30s ok=%d fail=%d", t.Name, t.SuccessCount, t.FailureCount)
				if t.LastError != "" {
					fmt.Printf(" last_error=%q", t.LastError)
				}
				fmt.Println()
			}
			fmt.Println("\nregistered tasks:")
			for _, n := range resp.RegisteredTasks {
				fmt.Printf("  %s\n", n)
			}
			fmt.Println("\npeers:")
			for _, p := range resp.Peers {
				fmt.Printf("  %-20s online=%v\n", p.Name, p.Online)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&extended, "extended", false, "include scheduler, task, and peer detail")
	return cmd
}
