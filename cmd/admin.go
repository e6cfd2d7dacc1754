package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/config"
	"multi-tenant-notes/internal/manager"
	"multi-tenant-notes/internal/model"
	"multi-tenant-notes/internal/storage"
)

// withTenantManager opens the store, migrating postgres first, and hands a
// TenantManager without an event publisher to fn.
func withTenantManager(cmd *cobra.Command, fn func(cfg *config.Config, store storage.Store, tm *manager.TenantManager, log *zap.Logger) error) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if pg, ok := store.(*storage.Postgres); ok {
		if err := pg.Migrate(cmd.Context()); err != nil {
			return err
		}
	}
	return fn(cfg, store, manager.NewTenantManager(store, nil, log), log)
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo tenants (acme, globex) and their users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenantManager(cmd, func(_ *config.Config, _ storage.Store, tm *manager.TenantManager, _ *zap.Logger) error {
				return tm.Seed(cmd.Context())
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema (no-op for other drivers)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenantManager(cmd, func(cfg *config.Config, _ storage.Store, _ *manager.TenantManager, log *zap.Logger) error {
				if cfg.Database.Driver != config.DriverPostgres {
					log.Info("nothing to migrate", zap.String("driver", cfg.Database.Driver))
					return nil
				}
				log.Info("schema is up to date")
				return nil
			})
		},
	}
}

func newTenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage tenants",
	}

	var name, tier string
	create := &cobra.Command{
		Use:   "create SLUG",
		Short: "Provision a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenantManager(cmd, func(_ *config.Config, _ storage.Store, tm *manager.TenantManager, _ *zap.Logger) error {
				t, err := tm.Provision(cmd.Context(), name, args[0], model.Tier(tier))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Slug, t.Subscription)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name (defaults to the slug)")
	create.Flags().StringVar(&tier, "tier", string(model.TierFree), "subscription tier: free or pro")

	cmd.AddCommand(create)
	return cmd
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var tenant, password, role string
	create := &cobra.Command{
		Use:   "create EMAIL",
		Short: "Create a user in a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenantManager(cmd, func(_ *config.Config, _ storage.Store, tm *manager.TenantManager, _ *zap.Logger) error {
				u, err := tm.ProvisionUser(cmd.Context(), tenant, args[0], password, model.Role(role))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.ID, u.Email, u.Role)
				return nil
			})
		},
	}
	create.Flags().StringVar(&tenant, "tenant", "", "tenant slug")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().StringVar(&role, "role", string(model.RoleMember), "admin or member")
	_ = create.MarkFlagRequired("tenant")
	_ = create.MarkFlagRequired("password")

	remove := &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Delete a user; its outstanding tokens stop working immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenantManager(cmd, func(cfg *config.Config, store storage.Store, _ *manager.TenantManager, log *zap.Logger) error {
				tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
				if err != nil {
					return err
				}
				return manager.NewAccountManager(store, store, tokens, log).Deactivate(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(create, remove)
	return cmd
}
