package database

import (
	"context"

	"pcba-mpi-api-server/config"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
)

// SeedAdmin creates the configured admin account if it does not exist yet.
// Seeding is skipped when no admin email is configured.
func SeedAdmin(ctx context.Context, creds *service.CredentialService, cfg config.SeedConfig, log *logger.Logger) error {
	if cfg.AdminEmail == "" {
		log.Debug("admin seeding disabled")
		return nil
	}
	created, err := creds.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info("admin account seeded", "email", cfg.AdminEmail)
	} else {
		log.Info("admin account already exists, seeding skipped", "email", cfg.AdminEmail)
	}
	return nil
}
