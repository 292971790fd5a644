package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"surajya/bootstrap"
	"surajya/models"
)

func reconcileCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Inspect and replay the reconciliation log",
		Long: `The reconciliation log holds ledger writes whose local record could not be
saved. Replaying applies each open entry to the store.`,
	}

	cmd.AddCommand(reconcileListCmd(env))
	cmd.AddCommand(reconcileReplayCmd(env))
	return cmd
}

func reconcileListCmd(env Env) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reconciliation entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && status != string(models.ReconcileOpen) && status != string(models.ReconcileReplayed) {
				return fmt.Errorf("status must be open or replayed, got %q", status)
			}
			return env.withApp(func(app *bootstrap.App) error {
				entries, err := app.Service.ListReconciliation(context.Background(), models.ReconciliationStatus(status))
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No reconciliation entries.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tKIND\tGRIEVANCE\tLEDGER ID\tSTATUS\tCREATED")
				fmt.Fprintln(w, "--\t----\t---------\t---------\t------\t-------")
				for _, e := range entries {
					st := color.New(color.FgRed).Sprint(string(e.Status))
					if e.Status == models.ReconcileReplayed {
						st = color.New(color.FgGreen).Sprint(string(e.Status))
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						e.ID, e.Kind, e.GrievanceID, e.LedgerID, st, e.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (open|replayed)")
	return cmd
}

func reconcileReplayCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay every open reconciliation entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(func(app *bootstrap.App) error {
				replayed, err := app.Service.ReplayReconciliation(context.Background())
				fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d entries\n", replayed)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s some entries remain open\n", color.New(color.FgRed).Sprint("✗"))
					return err
				}
				return nil
			})
		},
	}
}
