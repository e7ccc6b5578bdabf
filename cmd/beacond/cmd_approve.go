package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCmd() *cobra.Command {
	var deny bool
	var duration string
	var reason string
	cmd := &cobra.Command{
		Use:   "approve <channel> <sender-id>",
		Short: "resolve a held pending-approval request",
		Long: `Resolve a pending-approval request the access gateway is holding for an
unknown sender. Defaults to approving; pass --deny to deny instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newDaemonClient(configPath)
			if err != nil {
				return err
			}
			req := accessApproveRequest{
				Channel:  args[0],
				SenderID: args[1],
				Approve:  !deny,
				Duration: duration,
				Reason:   reason,
			}
			var resp map[string]string
			if err := c.post("/access/approve", req, &resp); err != nil {
				return err
			}
			if resp["status"] == "error" {
				return fmt.Errorf("beacond: %s", resp["error"])
			}
			if deny {
				fmt.Printf("denied %s / %s\n", args[0], args[1])
			} else {
				fmt.Printf("approved %s / %s\n", args[0], args[1])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deny, "deny", false, "deny instead of approve")
	cmd.Flags().StringVar(&duration, "for", "", `approval lifetime, e.g. "168h" for one week (default: no expiry)`)
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded alongside a denial")
	return cmd
}

// accessApproveRequest mirrors internal/httpapi's request body for
// POST /access/approve.
type accessApproveRequest struct {
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	Approve  bool   `json:"approve"`
	Duration string `json:"duration,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
