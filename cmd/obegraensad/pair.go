package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-obegraensad/internal/audit"
	"github.com/nerrad567/gray-logic-obegraensad/internal/flow"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/logging"
)

func pairCmd(configPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "pair <host>",
		Short: "Pair a display by probing it and creating a config entry",
		Long: `Pair runs the pairing flow once against the display at host.

The display must be reachable over WebSocket and report its brightness.
A display that is already paired is reported and left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			// Keep stdout for the result.
			log := logging.NewWithWriter(os.Stderr, cfg.Logging, version)

			ctx := cmd.Context()
			db, registry, err := openRegistry(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-mostly CLI session

			recorder := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), audit.SourceCLI)
			recorder.SetLogger(log)

			handler := newFlowHandler(ctx, cfg, pairingDeps{registry: registry, audit: recorder, log: log})
			result := handler.StepUser(ctx, &flow.UserInput{Host: args[0]})

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printPairResult(cmd.OutOrStdout(), args[0], result)
			}

			if result.Type == flow.ResultTypeForm {
				return fmt.Errorf("pairing %s failed", strings.TrimSpace(args[0]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the flow result as JSON")
	return cmd
}

// printPairResult renders a flow result for a terminal.
func printPairResult(w io.Writer, host string, r flow.Result) {
	switch r.Type {
	case flow.ResultTypeCreateEntry:
		fmt.Fprintf(w, "Paired %s\n  entry: %s\n", r.Title, r.EntryID)
	case flow.ResultTypeAbort:
		fmt.Fprintf(w, "Not paired: %s (%s)\n", host, r.Reason)
	default:
		for field, code := range r.Errors {
			fmt.Fprintf(w, "Error: %s: %s\n", field, code)
		}
	}
}
