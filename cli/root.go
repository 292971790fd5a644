// Package cli implements grievancectl, the operator command line for the
// grievance service.
package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"surajya/bootstrap"
	"surajya/config"
)

// Env supplies configuration and the wired application to commands.
type Env struct {
	// LoadConfig returns the validated configuration.
	LoadConfig func() (*config.Config, error)
	// Open connects to the store and builds the services.
	Open func(cfg *config.Config) (*bootstrap.App, error)
}

// DefaultEnv reads .env and the process environment.
func DefaultEnv() Env {
	return Env{
		LoadConfig: func() (*config.Config, error) {
			_ = godotenv.Load()
			cfg := config.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Open: func(cfg *config.Config) (*bootstrap.App, error) {
			db, err := bootstrap.OpenDatabase(cfg.Database)
			if err != nil {
				return nil, err
			}
			return bootstrap.New(cfg, db, nil), nil
		},
	}
}

// withApp loads config, opens the app, runs fn and closes the app.
func (e Env) withApp(fn func(app *bootstrap.App) error) error {
	cfg, err := e.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := e.Open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// RootCmd returns the grievancectl root command.
func RootCmd(env Env) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "grievancectl",
		Short: "Operate the grievance service",
		Long: `grievancectl runs escalation passes, inspects grievances, manages
priority rules, replays the reconciliation log and mints API tokens.

It reads the same environment (and .env) as the server.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !verbose {
				log.SetOutput(io.Discard)
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show service logs")

	cmd.AddCommand(escalateCmd(env))
	cmd.AddCommand(listCmd(env))
	cmd.AddCommand(showCmd(env))
	cmd.AddCommand(rulesCmd(env))
	cmd.AddCommand(reconcileCmd(env))
	cmd.AddCommand(tokenCmd(env))

	return cmd
}
