package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"surajya/bootstrap"
	"surajya/models"
)

func rulesCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage category priority rules",
		Long: `Manage the priority rule of each grievance category.

Categories seen for the first time get base priority 3. A changed priority only
affects grievances filed afterwards.`,
	}

	cmd.AddCommand(rulesListCmd(env))
	cmd.AddCommand(rulesSetCmd(env))
	return cmd
}

func rulesListCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List priority rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(func(app *bootstrap.App) error {
				rules, err := app.Rules.ListRules(context.Background())
				if err != nil {
					return err
				}
				if len(rules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No priority rules yet.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CATEGORY\tPRIORITY\tKEYWORDS")
				fmt.Fprintln(w, "--------\t--------\t--------")
				for _, r := range rules {
					fmt.Fprintf(w, "%s\t%d\t%s\n", r.Category, r.BasePriority, strings.Join(r.Keywords, ","))
				}
				return w.Flush()
			})
		},
	}
}

func rulesSetCmd(env Env) *cobra.Command {
	var keywords []string

	cmd := &cobra.Command{
		Use:   "set <category> <priority>",
		Short: "Create or replace a category's rule",
		Long: `Create or replace a category's rule. Priority is 1-10.

Examples:
  grievancectl rules set water 8
  grievancectl rules set electricity 9 --keywords outage,sparking`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(args[1])
			if err != nil || priority < 1 || priority > 10 {
				return fmt.Errorf("priority must be an integer between 1 and 10, got %q", args[1])
			}
			if keywords == nil {
				keywords = []string{}
			}

			return env.withApp(func(app *bootstrap.App) error {
				rule := &models.PriorityRule{Category: args[0], BasePriority: priority, Keywords: keywords}
				if err := app.Rules.UpsertRule(context.Background(), rule); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Rule for %s set to priority %d\n", rule.Category, rule.BasePriority)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "comma-separated keywords")
	return cmd
}
