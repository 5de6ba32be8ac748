package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kaneboard/kaneboard/internal/models"
)

var timelogCmd = &cobra.Command{
	Use:   "timelog",
	Short: "Correct recorded time logs",
}

var timelogSetCmd = &cobra.Command{
	Use:   "set [log-id] [seconds]",
	Short: "Override the duration of a time log",
	Args:  cobra.ExactArgs(2),
	RunE:  runTimelogSet,
}

var timelogDeleteCmd = &cobra.Command{
	Use:   "delete [log-id]",
	Short: "Delete a time log",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimelogDelete,
}

func init() {
	timelogCmd.AddCommand(timelogSetCmd, timelogDeleteCmd)
}

func runTimelogSet(cmd *cobra.Command, args []string) error {
	secs, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid seconds %q: %w", args[1], err)
	}

	resp, err := apiPatch("/time-logs/"+args[0], map[string]int64{"duration_seconds": secs})
	if err != nil {
		return err
	}

	var l models.TimeLog
	if err := json.Unmarshal(resp, &l); err != nil {
		return err
	}
	fmt.Printf("Time log %s set to %s\n", l.ID, formatSeconds(l.Seconds(l.StartedAt)))
	return nil
}

func runTimelogDelete(cmd *cobra.Command, args []string) error {
	if err := apiDelete("/time-logs/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted time log %s\n", args[0])
	return nil
}
