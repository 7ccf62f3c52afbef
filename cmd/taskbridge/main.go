package main

import (
	"fmt"
	"os"

	"taskbridge/internal/config"
	"taskbridge/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
	backendURL string

	// Set up by PersistentPreRunE
	cfg  *config.Config
	logs *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "taskbridge",
	Short: "taskbridge - task tracker gateway for an Apps Script backend",
	Long: `taskbridge exposes the task tracker's REST routes and forwards each call
to a single Apps Script web app, tagging it with the backend action.

Every response is JSON. Backend bodies that are not JSON are wrapped in an
error envelope carrying the raw text.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if backendURL != "" {
			cfg.Backend.URL = backendURL
		}

		logs, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logs.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "taskbridge.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "", "Apps Script web app URL (or set TASKBRIDGE_BACKEND_URL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
