package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"shutterbox/pkg/history"
)

// history: list recent capture results, newest first.
func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent capture results",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Entries []history.Entry `json:"entries"`
				Count   int             `json:"count"`
			}
			if err := getJSON(fmt.Sprintf("/api/history?limit=%d", limit), &out); err != nil {
				return err
			}
			if rawJSON {
				return printJSON(out)
			}
			if len(out.Entries) == 0 {
				fmt.Println("no captures recorded")
				return nil
			}
			for _, e := range out.Entries {
				fmt.Printf("%s  %-8s %7d  %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Mode, e.Count, e.CaptureID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max entries to list, 0 for all")
	return cmd
}
