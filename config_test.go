package identity

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	return Config{
		SigningKey:      "0123456789abcdef",
		TokenExpiration: 1,
		Issuer:          "identity-test",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "Minimal valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "Full config",
			mutate: func(c *Config) {
				c.Audience = []string{"web"}
				c.SenderEmail = "noreply@example.com"
				c.FrontendURL = "https://app.example.com"
			},
			wantErr: false,
		},
		{
			name:    "Missing signing key",
			mutate:  func(c *Config) { c.SigningKey = "" },
			wantErr: true,
		},
		{
			name:    "Short signing key",
			mutate:  func(c *Config) { c.SigningKey = "too-short" },
			wantErr: true,
		},
		{
			name:    "Zero token expiration",
			mutate:  func(c *Config) { c.TokenExpiration = 0 },
			wantErr: true,
		},
		{
			name:    "Missing issuer",
			mutate:  func(c *Config) { c.Issuer = "" },
			wantErr: true,
		},
		{
			name: "Admin bootstrap",
			mutate: func(c *Config) {
				c.AdminEmail = "admin@example.com"
				c.AdminPassword = "Admin123*pass"
				c.AdminName = "Administrator"
			},
			wantErr: false,
		},
		{
			name:    "Malformed admin email",
			mutate:  func(c *Config) { c.AdminEmail = "not-an-email" },
			wantErr: true,
		},
		{
			name:    "Short admin password",
			mutate:  func(c *Config) { c.AdminPassword = "short" },
			wantErr: true,
		},
		{
			name:    "Malformed sender email",
			mutate:  func(c *Config) { c.SenderEmail = "not-an-email" },
			wantErr: true,
		},
		{
			name:    "Malformed frontend URL",
			mutate:  func(c *Config) { c.FrontendURL = "::not-a-url" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if kind := ErrorKind(err); kind != TextCodeInvalidArgument {
					t.Fatalf("expected %s, got %s", TextCodeInvalidArgument, kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := validTestConfig().withDefaults()

	if cfg.RecoveryTTL != time.Hour {
		t.Fatalf("expected default recovery TTL of one hour, got %v", cfg.RecoveryTTL)
	}
	if cfg.QueueSize != DefaultQueueSize {
		t.Fatalf("expected default queue size, got %d", cfg.QueueSize)
	}
	if cfg.QueueWorkers != DefaultQueueWorkers {
		t.Fatalf("expected default queue workers, got %d", cfg.QueueWorkers)
	}

	custom := validTestConfig()
	custom.RecoveryTTL = 15 * time.Minute
	custom.QueueSize = 8
	custom.QueueWorkers = 1
	custom = custom.withDefaults()

	if custom.RecoveryTTL != 15*time.Minute || custom.QueueSize != 8 || custom.QueueWorkers != 1 {
		t.Fatalf("withDefaults overwrote explicit values: %+v", custom)
	}
}
