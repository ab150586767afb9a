package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:    "mongodb://localhost:27017",
		JWTSecret:   "0123456789abcdef0123456789abcdef",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  720 * time.Hour,
		RegisterTTL: 168 * time.Hour,
		RecoverTTL:  time.Hour,
		StoragePath: "./uploads",
	}
}

func TestValidateConfig_OK(t *testing.T) {
	if err := ValidateConfig(nil, validAppConfig(), zap.NewNop()); err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}
}

func TestValidateConfig_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"bad mongo uri", func(c *AppConfig) { c.MongoURI = "http://not-mongo" }},
		{"short jwt secret", func(c *AppConfig) { c.JWTSecret = "too-short" }},
		{"zero access ttl", func(c *AppConfig) { c.AccessTTL = 0 }},
		{"zero refresh ttl", func(c *AppConfig) { c.RefreshTTL = 0 }},
		{"empty storage path", func(c *AppConfig) { c.StoragePath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validAppConfig()
			tc.mutate(&cfg)
			if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
