package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kaneboard",
	Short: "Kaneboard - kanban boards with time tracking",
	Long: `Kaneboard runs multi-tenant kanban boards with per-user time tracking
and schedule health forecasts. Run "kaneboard serve" to start the API daemon;
every other command talks to it over HTTP.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	userID     string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", envOr("KANEBOARD_API", "http://127.0.0.1:7466"), "API server address")
	rootCmd.PersistentFlags().StringVar(&userID, "user", envOr("KANEBOARD_USER", os.Getenv("USER")), "Acting user id (sent as X-User-ID)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.kaneboard/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(timelogCmd)
	rootCmd.AddCommand(riskyCmd)
	rootCmd.AddCommand(boardCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
