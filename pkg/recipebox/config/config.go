// Package config loads server configuration and builds the service stack
// from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platefork/recipebox/pkg/recipebox"
	memoryrepo "github.com/platefork/recipebox/pkg/recipebox/repo/memory"
	pgrepo "github.com/platefork/recipebox/pkg/recipebox/repo/postgres"
	fsstorage "github.com/platefork/recipebox/pkg/recipebox/storage/fs"
	memorystorage "github.com/platefork/recipebox/pkg/recipebox/storage/memory"
	s3storage "github.com/platefork/recipebox/pkg/recipebox/storage/s3"
)

// ServerConfig represents server configuration for the recipebox service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// Database configuration. Empty DatabaseURL selects the in-memory
	// repository.
	DatabaseURL string `env:"DATABASE_URL" env-default:""`

	// Storage configuration
	StorageBackend string `env:"STORAGE_BACKEND" env-default:"memory"` // "memory", "fs", "s3"
	FSBaseDir      string `env:"FS_BASE_DIR" env-default:"./data/storage"`

	S3Region                 string `env:"S3_REGION" env-default:"us-east-1"`
	S3Bucket                 string `env:"S3_BUCKET" env-default:""`
	S3AccessKeyID            string `env:"S3_ACCESS_KEY_ID" env-default:""`
	S3SecretAccessKey        string `env:"S3_SECRET_ACCESS_KEY" env-default:""`
	S3Endpoint               string `env:"S3_ENDPOINT" env-default:""`
	S3UsePathStyle           bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	S3CreateBucketIfNotExist bool   `env:"S3_CREATE_BUCKET" env-default:"false"`

	// Auth
	JWTSecret string `env:"JWT_SECRET" env-default:""`
}

// Load reads configuration from the environment and validates it.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.StorageBackend {
	case "memory", "fs":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}

	return nil
}

// BuildRepository creates a Repository based on the configuration.
func (c *ServerConfig) BuildRepository(ctx context.Context) (recipebox.Repository, error) {
	if c.DatabaseURL == "" {
		return memoryrepo.New(), nil
	}

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, pgrepo.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return pgrepo.NewWithPool(pool), nil
}

// BuildBlobStore creates a BlobStore based on the configuration.
func (c *ServerConfig) BuildBlobStore() (recipebox.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			CreateBucketIfNotExist: c.S3CreateBucketIfNotExist,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
}

// BuildService wires the repository, blob store and event sink into a
// Service.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (recipebox.Service, error) {
	repo, err := c.BuildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.BuildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	return recipebox.New(
		recipebox.WithRepository(repo),
		recipebox.WithBlobStore(store),
		recipebox.WithEventSink(recipebox.NewSlogEventSink(logger)),
		recipebox.WithLogger(logger),
	)
}
