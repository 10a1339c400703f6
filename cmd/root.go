package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "live-pk-service",
	Short: "Live sessions registry, PK battles and real-time event fanout",
	Long:  `HTTP + WebSocket API. Commands: api, token.`,
	RunE:  runAPI, // default: run API (same as "live-pk-service api")
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(tokenCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}
