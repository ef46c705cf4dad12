package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// frame: download the captured still.
func frameCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Download the captured still as JPEG",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := getRaw("/api/frame")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "frame.jpg", "output file")
	return cmd
}
