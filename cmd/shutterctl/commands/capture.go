package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"shutterbox/pkg/session"
)

// capture: freeze the live stream into a still.
func captureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Freeze the live stream into a still",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap session.Snapshot
			if err := postJSON("/api/capture", nil, &snap); err != nil {
				return err
			}
			if rawJSON {
				return printJSON(snap)
			}
			fmt.Printf("captured %dx%d\n", snap.FrameWidth, snap.FrameHeight)
			return nil
		},
	}
}
