package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sillsdev/silauto-backend/internal/app"
	"github.com/sillsdev/silauto-backend/internal/platform/shutdown"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "silauto",
		Short: "Catalog and task tracker for the SILNLP translation pipeline",
		Long: `silauto keeps a catalog of Paratext projects, extracted scriptures,
experiments and drafts in line with the SILNLP data directory, and tracks
the align, train, draft and extract tasks run against them.`,
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().Bool("skip-startup-scan", false, "Do not reconcile the catalog before serving")

	scanCmd := &cobra.Command{
		Use:       "scan [kind...]",
		Short:     "Reconcile the catalog with the data directory and exit",
		Long:      "Kinds are projects, scriptures, experiments and drafts. All are scanned when none are given.",
		ValidArgs: []string{"projects", "scriptures", "experiments", "drafts"},
		RunE:      runScan,
	}
	scanCmd.Flags().Bool("json", false, "Print the scan reports as JSON")
	scanCmd.Flags().Bool("strict", false, "Exit non-zero when any artifact failed extraction")

	rootCmd.AddCommand(serveCmd, scanCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	if skip, _ := cmd.Flags().GetBool("skip-startup-scan"); skip {
		if err := os.Setenv("SKIP_STARTUP_SCAN", "true"); err != nil {
			return err
		}
	}
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	kinds := make([]reconcile.Kind, 0, len(args))
	for _, arg := range args {
		k, err := reconcile.ParseKind(arg)
		if err != nil {
			return err
		}
		kinds = append(kinds, k)
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	strict, _ := cmd.Flags().GetBool("strict")

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer a.Close()

	reports, scanErr := a.Scan(ctx, kinds...)
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r == nil {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s stored=%d skipped=%d failures=%d (%dms)\n",
				r.Kind, r.Stored, r.Skipped, len(r.Failures), r.DurationMS)
			for _, f := range r.Failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", f.Path, f.Message)
			}
		}
	}
	if scanErr != nil {
		return fmt.Errorf("scan: %w", scanErr)
	}
	if strict {
		for _, r := range reports {
			if r != nil && len(r.Failures) > 0 {
				return fmt.Errorf("scan: %s had %d failed artifacts", r.Kind, len(r.Failures))
			}
		}
	}
	return nil
}
