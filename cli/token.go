package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"surajya/models"
	"surajya/utils"
)

func tokenCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint API tokens signed with JWT_SECRET",
		Long: `Mint API tokens for local testing and operator use. Tokens expire after
TOKEN_TTL (default 24h).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "citizen <citizen-id>",
		Short: "Mint a citizen token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			token, err := utils.GenerateCitizenJWT(args[0], []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})

	var level int
	official := &cobra.Command{
		Use:   "official <official-id>",
		Short: "Mint an official token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if level < models.LevelOne || level > models.LevelThree {
				return fmt.Errorf("level must be 1, 2 or 3, got %d", level)
			}
			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			token, err := utils.GenerateOfficialJWT(args[0], level, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	official.Flags().IntVar(&level, "level", models.LevelOne, "official tier (1-3)")
	cmd.AddCommand(official)

	return cmd
}
