package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/oksasatya/course-identity/config"
	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/internal/domain/repository"
	pginfra "github.com/oksasatya/course-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/pii"
)

// seed creates the first SUPER_ADMIN so invites can be issued. Re-running it
// with an existing email is a no-op.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		log.Fatal("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}

	master, err := pii.ParseKey(cfg.PIIIndexKey)
	if err != nil {
		log.Fatalf("PII_INDEX_KEY: %v", err)
	}
	indexer, err := pii.NewBlindIndexer(master)
	if err != nil {
		log.Fatalf("PII_INDEX_KEY: %v", err)
	}
	encKey, err := pii.ParseKey(cfg.PIIEncryptionKey)
	if err != nil {
		log.Fatalf("PII_ENCRYPTION_KEY: %v", err)
	}
	vault, err := pii.NewVault(encKey, indexer)
	if err != nil {
		log.Fatalf("PII_ENCRYPTION_KEY: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{DSN: cfg.PostgresDSN(), MaxConns: 2, MinConns: 1, MaxConnLife: time.Minute})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	email, err := vault.Seal(pii.FieldEmail, cfg.SeedAdminEmail)
	if err != nil {
		log.Fatalf("seal email: %v", err)
	}
	hash, err := helpers.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now().UTC()
	u := &entity.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Super",
		LastName:     "Admin",
		Role:         entity.RoleSuperAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	users := pginfra.NewUserRepository(pool)
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			logger.Info("seed admin already exists")
			return
		}
		log.Fatalf("failed to seed admin: %v", err)
	}
	logger.WithField("user_id", u.ID).Info("seeded SUPER_ADMIN")
}
