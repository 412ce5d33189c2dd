package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-obegraensad/internal/audit"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/logging"
)

func entriesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage paired displays",
	}
	cmd.AddCommand(entriesListCmd(configPath))
	cmd.AddCommand(entriesRemoveCmd(configPath))
	return cmd
}

func entriesListCmd(configPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List paired displays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := logging.NewWithWriter(os.Stderr, cfg.Logging, version)

			db, registry, err := openRegistry(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-only CLI session

			entries, err := registry.ListEntries(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing entries: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No paired displays.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tHOST\tTITLE\tCREATED\n")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Data.Host, e.Title, e.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func entriesRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a paired display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := logging.NewWithWriter(os.Stderr, cfg.Logging, version)

			db, registry, err := openRegistry(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Short CLI session

			if err := registry.DeleteEntry(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing entry %s: %w", args[0], err)
			}
			recorder := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), audit.SourceCLI)
			recorder.SetLogger(log)
			recorder.Record(cmd.Context(), audit.ActionEntryDeleted, args[0], nil)

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}
