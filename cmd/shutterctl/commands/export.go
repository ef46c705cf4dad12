package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// export: download the full capture history as CSV.
func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the capture history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := getRaw("/api/history/export")
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write CSV to file instead of stdout")
	return cmd
}
