package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shutterbox/internal/config"
	"shutterbox/pkg/session"
)

var (
	station string
	rawJSON bool
)

func Execute() error {
	root := &cobra.Command{
		Use:           "shutterctl",
		Short:         "Drive a shutterbox capture station from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&station, "station", config.StationURL(), "station base URL")
	root.PersistentFlags().BoolVar(&rawJSON, "json", false, "print raw JSON responses")

	root.AddCommand(
		stateCmd(),
		startCmd(),
		captureCmd(),
		processCmd(),
		retakeCmd(),
		resetCmd(),
		frameCmd(),
		historyCmd(),
		exportCmd(),
		watchCmd(),
	)
	return root.Execute()
}

// printJSON dumps v as indented JSON, for --json output.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// printSnapshot renders a workflow snapshot as aligned key: value lines.
func printSnapshot(s *session.Snapshot) {
	fmt.Printf("phase:     %s\n", s.Phase)
	fmt.Printf("streaming: %v\n", s.Streaming)
	if s.HasFrame {
		fmt.Printf("frame:     %dx%d (seq %d)\n", s.FrameWidth, s.FrameHeight, s.FrameSeq)
	} else {
		fmt.Printf("frame:     none\n")
	}
	fmt.Printf("engine:    %s\n", s.Engine)
	if s.Result != nil {
		fmt.Printf("count:     %d (%s, %s)\n", s.Result.Count, s.Result.Mode, s.Result.Elapsed)
	}
	if s.Error != nil {
		fmt.Fprintf(os.Stderr, "error:     [%s] %s\n", s.Error.Kind, s.Error.Message)
		if s.Error.Hint != "" {
			fmt.Fprintf(os.Stderr, "hint:      %s\n", s.Error.Hint)
		}
	}
}
