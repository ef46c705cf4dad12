package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"shutterbox/pkg/session"
)

// retake: discard the still and return to live streaming.
func retakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retake",
		Short: "Discard the still and return to streaming",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap session.Snapshot
			if err := postJSON("/api/retake", nil, &snap); err != nil {
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
