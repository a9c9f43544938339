package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dpchat/backend/internal/repository"
	"dpchat/backend/pkg/config"
	"dpchat/backend/pkg/jwt"
	"dpchat/backend/pkg/secrets"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

func (o *rootOptions) secretManager() (secrets.Manager, error) {
	return secrets.NewVaultManager(secrets.VaultConfig{
		Enabled:     o.cfg.Vault.Enabled,
		Address:     o.cfg.Vault.Address,
		Token:       o.cfg.Vault.Token,
		SecretsPath: o.cfg.Vault.SecretsPath,
	}, o.log)
}

func newMongoCheckCmd(root *rootOptions) *cobra.Command {
	var uri string

	cmd := &cobra.Command{
		Use:   "mongo-check",
		Short: "Connect to MongoDB, write and delete a probe document, and list collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uri == "" {
				sm, err := root.secretManager()
				if err != nil {
					return err
				}
				uri = sm.GetSecretWithDefault(cmd.Context(), secrets.KeyMongoURI, root.cfg.Database.URI)
			}

			provider := config.NewMongoProvider(root.cfg, uri, root.log)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = provider.Close(ctx)
			}()

			db, err := provider.Database(cmd.Context())
			if err != nil {
				return err
			}

			start := time.Now()
			if err := repository.Probe(cmd.Context(), db); err != nil {
				return fmt.Errorf("write probe failed: %w", err)
			}

			names, err := db.ListCollectionNames(cmd.Context(), bson.D{})
			if err != nil {
				return fmt.Errorf("list collections: %w", err)
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"database":    db.Name(),
				"probe":       "ok",
				"roundTripMs": time.Since(start).Milliseconds(),
				"collections": names,
			})
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "", "MongoDB connection string (default MONGODB_URI or the Vault secret)")
	return cmd
}

func newAdminTokenCmd(root *rootOptions) *cobra.Command {
	var (
		subject string
		role    string
		expiry  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue a bearer token for the transcript read routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sm, err := root.secretManager()
			if err != nil {
				return err
			}
			secret := sm.GetSecretWithDefault(cmd.Context(), secrets.KeyAdminJWTSecret, root.cfg.JWT.Secret)
			if secret == "" {
				return errors.New("ADMIN_JWT_SECRET is not set")
			}

			if expiry <= 0 {
				expiry = root.cfg.JWT.Expiry
			}
			token, err := jwt.NewService(secret, expiry).GenerateToken(subject, jwt.Role(role))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&role, "role", string(jwt.RoleAdmin), "role claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default ADMIN_JWT_EXPIRY)")
	return cmd
}
