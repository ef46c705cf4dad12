package commands

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"shutterbox/pkg/protocol"
)

// watch: tail the station's event stream until interrupted.
func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream workflow events as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := wsURL("/ws/events")
			if err != nil {
				return err
			}

			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return fmt.Errorf("station unreachable: %w", err)
			}
			defer conn.Close()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			go func() {
				<-interrupt
				conn.Close()
			}()

			fmt.Fprintf(os.Stderr, "watching %s (Ctrl+C to stop)\n", url)

			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					// Closed by interrupt or by the station going away.
					return nil
				}
				printEvent(data)
			}
		},
	}
}

// printEvent renders one protocol message as a single log line.
func printEvent(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return
	}
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")

	switch msg.Type {
	case protocol.TypeState:
		st, err := msg.GetStateData()
		if err != nil {
			return
		}
		line := fmt.Sprintf("%s  state   %s", ts, st.Phase)
		if st.HasFrame {
			line += " +frame"
		}
		if st.Error != "" {
			line += "  error=" + st.Error
		}
		fmt.Println(line)
	case protocol.TypeResult:
		res, err := msg.GetResultData()
		if err != nil {
			return
		}
		fmt.Printf("%s  result  count=%d mode=%s engine=%s elapsed=%dms\n",
			ts, res.Count, res.Mode, res.Engine, res.ElapsedMs)
	case protocol.TypeError:
		e, err := msg.GetErrorData()
		if err != nil {
			return
		}
		fmt.Printf("%s  error   [%s] %s\n", ts, e.Kind, e.Message)
	default:
		fmt.Printf("%s  %s\n", ts, msg.Type)
	}
}
