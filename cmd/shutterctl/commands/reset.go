package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"shutterbox/pkg/session"
)

// reset: clear the workflow back to a clean state.
func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the workflow back to a clean state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap session.Snapshot
			if err := postJSON("/api/reset", nil, &snap); err != nil {
				return err
			}
			if rawJSON {
				return printJSON(snap)
			}
			fmt.Println(snap.Phase)
			return nil
		},
	}
}
