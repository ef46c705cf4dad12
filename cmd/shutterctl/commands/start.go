package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"shutterbox/pkg/session"
)

// start: acquire the camera and begin streaming.
func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the camera stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap session.Snapshot
			if err := postJSON("/api/camera/start", nil, &snap); err != nil {
				return err
			}
			if rawJSON {
				return printJSON(snap)
			}
			fmt.Println("streaming")
			return nil
		},
	}
}
