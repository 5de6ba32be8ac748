package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaneboard/kaneboard/internal/tui"
)

var boardProject string

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive kanban board",
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().StringVar(&boardProject, "project", "", "Project to open first")
}

func runBoard(cmd *cobra.Command, args []string) error {
	if userID == "" {
		return fmt.Errorf("no user set: pass --user or KANEBOARD_USER")
	}
	if !isDaemonRunning(apiAddr) {
		fmt.Println("Kaneboard daemon not running. Starting background service...")
		if err := startDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	app := tui.New(apiAddr, userID, boardProject)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning(addr string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// listenFromAPI derives the daemon listen address from the --api URL.
func listenFromAPI(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("parse api address: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api address %q has no host", addr)
	}
	return u.Host, nil
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	listen, err := listenFromAPI(apiAddr)
	if err != nil {
		return err
	}

	args := []string{"serve", "--listen", listen}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(exe, args...)
	configureDaemonProc(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ {
		if isDaemonRunning(apiAddr) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", apiAddr)
}
