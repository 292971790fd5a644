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

func escalateCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Run one escalation pass now",
		Long: `Run one escalation pass against the configured store.

Safe to run while the server's timers are running: every promotion is a
conditional update, so a grievance is never promoted twice for the same dwell.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(func(app *bootstrap.App) error {
				result, err := app.Service.RunEscalationPass(context.Background())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, r := range result.Results {
					switch r.Outcome {
					case models.EscalationPromoted:
						fmt.Fprintf(out, "%s %s: level %d -> %d (%s)\n",
							color.New(color.FgGreen).Sprint("ESCALATED"), r.GrievanceID, r.FromLevel, r.ToLevel, r.Reason)
					case models.EscalationConflict:
						fmt.Fprintf(out, "%s %s: %s\n", color.New(color.FgYellow).Sprint("CONFLICT "), r.GrievanceID, r.Reason)
					case models.EscalationFailed:
						fmt.Fprintf(out, "%s %s: %s\n", color.New(color.FgRed).Sprint("FAILED   "), r.GrievanceID, r.Reason)
					}
				}
				fmt.Fprintf(out, "Scanned %d, escalated %d, skipped %d, conflicts %d, failed %d\n",
					result.Scanned, result.Escalated, result.Skipped, result.Conflicts, result.Failed)
				return nil
			})
		},
	}
}

func listCmd(env Env) *cobra.Command {
	var status string
	var level, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List grievances, oldest first",
		Long: `List grievances, oldest first.

Examples:
  grievancectl list
  grievancectl list --status pending --level 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(func(app *bootstrap.App) error {
				list, err := app.Service.List(context.Background(), models.GrievanceFilter{
					Status: models.GrievanceStatus(status),
					Level:  level,
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No grievances found.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCATEGORY\tSTATUS\tLEVEL\tPRIORITY\tESCALATIONS\tCREATED")
				fmt.Fprintln(w, "--\t--------\t------\t-----\t--------\t-----------\t-------")
				for i := range list {
					g := &list[i]
					priority := "-"
					if g.Priority.Valid {
						priority = fmt.Sprint(g.Priority.Int64)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
						g.ID, g.Category, statusLabel(g.Status), g.AssignedLevel, priority,
						g.EscalationCount, g.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|resolved)")
	cmd.Flags().IntVar(&level, "level", 0, "filter by assigned level (1-3)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (default 500)")
	return cmd
}

func showCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <grievance-id>",
		Short: "Show one grievance and its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(func(app *bootstrap.App) error {
				ctx := context.Background()
				g, err := app.Service.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get grievance %s: %w", args[0], err)
				}
				history, err := app.Service.History(ctx, g.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Grievance: %s\n", g.ID)
				fmt.Fprintf(out, "  Category:    %s\n", g.Category)
				fmt.Fprintf(out, "  Status:      %s\n", statusLabel(g.Status))
				fmt.Fprintf(out, "  Level:       %d", g.AssignedLevel)
				if g.AutoEscalated {
					fmt.Fprint(out, color.New(color.FgHiMagenta).Sprint(" [auto-escalated]"))
				}
				fmt.Fprintln(out)
				if g.Priority.Valid {
					fmt.Fprintf(out, "  Priority:    %d\n", g.Priority.Int64)
				}
				fmt.Fprintf(out, "  Escalations: %d\n", g.EscalationCount)
				fmt.Fprintf(out, "  Created:     %s\n", g.CreatedAt.Format("2006-01-02 15:04:05 MST"))
				if g.LedgerID.Valid {
					fmt.Fprintf(out, "  Ledger ID:   %s\n", g.LedgerID.String)
				}
				if g.ResolvedAt.Valid {
					fmt.Fprintf(out, "  Resolved:    %s by %s\n", g.ResolvedAt.Time.Format("2006-01-02 15:04:05 MST"), g.ResolvedBy.String)
				}
				if g.LedgerReceipt.Valid {
					fmt.Fprintf(out, "  Receipt:     %s\n", g.LedgerReceipt.String)
				}

				fmt.Fprintln(out)
				fmt.Fprintln(out, "History:")
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, e := range history {
					actor := string(e.ActorType)
					if e.ActorID.Valid {
						actor += ":" + e.ActorID.String
					}
					fmt.Fprintf(w, "  %s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, actor)
				}
				return w.Flush()
			})
		},
	}
}

func statusLabel(s models.GrievanceStatus) string {
	if s == models.StatusResolved {
		return color.New(color.FgGreen).Sprint(string(s))
	}
	return color.New(color.FgYellow).Sprint(string(s))
}
