package commands

import (
	"github.com/spf13/cobra"

	"shutterbox/pkg/session"
)

// state: show the station's workflow state.
func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the station's workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap session.Snapshot
			if err := getJSON("/api/state", &snap); err != nil {
				return err
			}
			if rawJSON {
				return printJSON(snap)
			}
			printSnapshot(&snap)
			return nil
		},
	}
}
