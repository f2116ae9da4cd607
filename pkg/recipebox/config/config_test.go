package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE_BACKEND", "fs")
	t.Setenv("FS_BASE_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "fs", cfg.StorageBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *ServerConfig) {}},
		{name: "missing port", mutate: func(c *ServerConfig) { c.Port = "" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *ServerConfig) { c.StorageBackend = "ftp" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *ServerConfig) { c.StorageBackend = "s3" }, wantErr: true},
		{
			name: "s3 with bucket",
			mutate: func(c *ServerConfig) {
				c.StorageBackend = "s3"
				c.S3Bucket = "recipes"
			},
		},
		{
			name: "production without jwt secret",
			mutate: func(c *ServerConfig) {
				c.Environment = "production"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ServerConfig{
				Port:           "8080",
				Environment:    "development",
				StorageBackend: "memory",
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildServiceMemory(t *testing.T) {
	cfg := ServerConfig{
		Port:           "8080",
		Environment:    "testing",
		StorageBackend: "memory",
	}

	svc, err := cfg.BuildService(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
