package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SESSION_TTL", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, StoreDriverMySQL, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "product-images", cfg.MediaBucket)
	assert.Equal(t, 8, cfg.FeaturedLimit)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ADMIN_EMAILS", "boss@veloshop.test, ops@veloshop.test ,")
	t.Setenv("FEATURED_LIMIT", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"boss@veloshop.test", "ops@veloshop.test"}, cfg.AdminEmails)
	assert.Equal(t, 8, cfg.FeaturedLimit)
	assert.True(t, cfg.IsAdminEmail("BOSS@veloshop.test"))
	assert.False(t, cfg.IsAdminEmail("rider@veloshop.test"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "unknown driver", modify: func(c *Config) { c.StoreDriver = "sqlite" }, wantErr: true},
		{name: "missing secret", modify: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "zero ttl", modify: func(c *Config) { c.SessionTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StoreDriver: StoreDriverMemory, JWTSecret: "s3cret", SessionTTL: time.Hour}
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "3306", DBName: "shop"}
	assert.Equal(t, "u:p@tcp(h:3306)/shop?parseTime=true&charset=utf8mb4&clientFoundRows=true", cfg.GetDSN())
}
