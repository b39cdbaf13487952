package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "building-access-service",
	Short: "Building Access Service - access control for managed buildings",
	Long: `The access control service for the building management platform.
It manages buildings, doors, PIN-based access grants and visitors, validates
access attempts at doors, keeps an append-only access log, and publishes
domain events to the shared message bus.`,
}

func init() {
	// A local .env is a development convenience; absence is not an error
	godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
