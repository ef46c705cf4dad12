package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"shutterbox/pkg/session"
)

// process: run the counting analysis on the captured still.
func processCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Count objects in the captured still",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if mode != "" {
				body = map[string]string{"mode": mode}
			}
			var snap session.Snapshot
			if err := postJSON("/api/process", body, &snap); err != nil {
				return err
			}
			if rawJSON {
				return printJSON(snap)
			}
			if snap.Result == nil {
				return fmt.Errorf("station returned no result")
			}
			fmt.Printf("count: %d (%s, %s, %s)\n",
				snap.Result.Count, snap.Result.Mode, snap.Result.Engine, snap.Result.Elapsed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "counting mode: contours or pixels (default the station's)")
	return cmd
}
