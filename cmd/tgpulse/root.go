package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	port    string
	debug   bool
	version = "dev"
	commit  = "unknown"
)

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "tgpulse",
	Short: "Monitor Telegram account activity over an HTTP API",
	Long: `tgpulse logs users into their Telegram accounts through a protocol
bridge, records the activity of every signed-in account and serves stats,
activity feeds and charts over a JSON API. Incoming private messages can be
answered automatically through a Chatbase chatbot.

Configuration is read from the environment (and a .env file if present):
  TELEGRAM_API_ID, TELEGRAM_API_HASH   required protocol credentials
  TELEGRAM_BRIDGE_ADDR                 unix:///path or tcp://host:port
  CHATBASE_API_KEY, CHATBASE_CHATBOT_ID enable the auto-reply relay`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(rootCmd.Version)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (overrides LOG_LEVEL)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
