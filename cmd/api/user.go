package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/mortuary-api/internal/app"
	"github.com/jwalitptl/mortuary-api/internal/config"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
	"github.com/jwalitptl/mortuary-api/pkg/validator"
)

// newCreateUserCmd bootstraps accounts, in particular the first admin,
// without going through the admin-only API.
func newCreateUserCmd() *cobra.Command {
	var req model.CreateUserRequest

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log := app.NewLogger(cfg.Log)

			if err := validator.New().Struct(&req); err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := app.OpenStore(ctx, cfg.Database, metrics.Noop(), log)
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := app.NewServices(cfg, store, metrics.Noop(), log).Users.Create(ctx, &req)
			if err != nil {
				return err
			}
			log.Info("User created", "id", u.ID, "username", u.Username, "role", string(u.Role))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar((*string)(&req.Role), "role", string(model.RoleAdmin), "admin, medical_staff, mortuary_staff or viewer")
	for _, f := range []string{"username", "password", "full-name", "email"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
