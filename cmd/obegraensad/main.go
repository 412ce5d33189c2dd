// Gray Logic OBEGRÄNSAD - IKEA LED matrix integration
//
// This is the entry point for the OBEGRÄNSAD integration service. It pairs
// IKEA OBEGRÄNSAD LED displays running the community WebSocket firmware,
// stores them as config entries and relays their state onto the Gray Logic
// MQTT bus.
//
// Commands:
//
//	obegraensad serve            run the service (API, bridge, telemetry)
//	obegraensad pair <host>      pair a display from the terminal
//	obegraensad entries list     list paired displays
//	obegraensad entries remove   remove a paired display
//	obegraensad version          print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called explicitly above
	}
}

// rootCmd builds the command tree.
func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "obegraensad",
		Short:         "Gray Logic integration for IKEA OBEGRÄNSAD LED displays",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", getConfigPath(),
		"configuration file (env GRAYLOGIC_CONFIG)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(pairCmd(&configPath))
	cmd.AddCommand(entriesCmd(&configPath))
	cmd.AddCommand(versionCmd())
	return cmd
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "obegraensad %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
