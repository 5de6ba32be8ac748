package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kaneboard/kaneboard/internal/controlplane"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Track time on tickets",
}

var timerStatusCmd = &cobra.Command{
	Use:   "status [ticket-id]",
	Short: "Show your timer state on a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimerStatus,
}

var timerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show your running timer, if any",
	RunE:  runTimerCurrent,
}

func init() {
	for _, action := range []string{"start", "resume", "pause", "stop"} {
		timerCmd.AddCommand(timerActionCmd(action))
	}
	timerCmd.AddCommand(timerStatusCmd, timerCurrentCmd)
}

func timerActionCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [ticket-id]",
		Short: fmt.Sprintf("%s your timer on a ticket", capitalize(action)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiPost("/tickets/"+args[0]+"/timer/"+action, nil)
			if err != nil {
				return err
			}
			return printTimerResult(resp)
		},
	}
}

// timerReply is the union of a successful timer write and a soft failure.
type timerReply struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
	tracker.TimerResult
}

func printTimerResult(resp []byte) error {
	var r timerReply
	if err := json.Unmarshal(resp, &r); err != nil {
		return err
	}
	if !r.OK {
		fmt.Printf("%s (%s)\n", r.Message, r.Code)
		return nil
	}

	fmt.Println(r.Message)
	if r.Stopped != nil {
		fmt.Printf("  stopped timer on ticket %s after %s\n", r.Stopped.TicketID, formatSeconds(r.Stopped.Seconds(r.Stopped.StartedAt)))
	}
	if r.Log != nil && !r.Log.IsRunning() {
		fmt.Printf("  session: %s\n", formatSeconds(r.Log.Seconds(r.Log.StartedAt)))
	}
	return nil
}

func runTimerStatus(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tickets/" + args[0] + "/timer")
	if err != nil {
		return err
	}

	var st tracker.TimerState
	if err := json.Unmarshal(resp, &st); err != nil {
		return err
	}
	if !st.Running {
		fmt.Printf("Not running (total %s)\n", formatSeconds(st.ElapsedSeconds))
		return nil
	}
	fmt.Printf("Running since %s\n", formatAgo(*st.StartedAt))
	fmt.Printf("  this session: %s\n", formatSeconds(st.LiveSeconds))
	fmt.Printf("  total:        %s\n", formatSeconds(st.ElapsedSeconds))
	return nil
}

func runTimerCurrent(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/timer")
	if err != nil {
		return err
	}

	var cur controlplane.CurrentTimerResponse
	if err := json.Unmarshal(resp, &cur); err != nil {
		return err
	}
	if !cur.Running || cur.Timer == nil {
		fmt.Println("No running timer")
		return nil
	}

	t := cur.Timer
	fmt.Printf("%s  %s\n", t.TicketID, t.TicketTitle)
	fmt.Printf("  status:  %s\n", t.TicketStatus)
	fmt.Printf("  started: %s\n", formatAgo(t.StartedAt))
	fmt.Printf("  tracked: %s\n", formatSeconds(t.ElapsedSeconds))
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
