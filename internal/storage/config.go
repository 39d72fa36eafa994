// Manages server configuration stored in server_config.json.

package storage

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ServerConfig stores all server-wide configuration.
// Loaded from server_config.json, created with defaults if missing.
type ServerConfig struct {
	// JWTSecret is the secret used to sign session tokens.
	// Auto-generated if empty on first load.
	JWTSecret []byte `json:"jwt_secret"`

	// AdminPasswordHash is the bcrypt hash of the admin password. It can be
	// overridden from the environment at startup.
	AdminPasswordHash string `json:"admin_password_hash,omitempty"`

	// Quotas defines server-wide resource limits.
	Quotas ServerQuotas `json:"quotas"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `json:"rate_limits"`
}

// RateLimits defines rate limiting configuration (requests per minute).
// 0 means unlimited.
type RateLimits struct {
	// AuthRatePerMin limits login attempts.
	AuthRatePerMin int `json:"auth_rate_per_min"`

	// WriteRatePerMin limits mutations (POST/PUT/DELETE and uploads).
	WriteRatePerMin int `json:"write_rate_per_min"`

	// ReadRatePerMin limits public reads.
	ReadRatePerMin int `json:"read_rate_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.AuthRatePerMin < 0 {
		return errors.New("auth_rate_per_min must be non-negative")
	}
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	if r.ReadRatePerMin < 0 {
		return errors.New("read_rate_per_min must be non-negative")
	}
	return nil
}

// DefaultRateLimits returns the default rate limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		AuthRatePerMin:  5,    // 5 req/min for login
		WriteRatePerMin: 60,   // 60 req/min for writes
		ReadRatePerMin:  6000, // 6k req/min for reads
	}
}

// ServerQuotas defines server-wide resource limits.
type ServerQuotas struct {
	// MaxUploadFileBytes limits the size of a single uploaded image.
	MaxUploadFileBytes int64 `json:"max_upload_file_bytes"`

	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	// Upload requests carry several files and use MaxUploadBatchBytes instead.
	MaxRequestBodyBytes int64 `json:"max_request_body_bytes"`

	// MaxUploadBatchBytes limits the size of one multipart upload request.
	MaxUploadBatchBytes int64 `json:"max_upload_batch_bytes"`

	// SessionTTLSeconds is the lifetime of an admin session.
	SessionTTLSeconds int64 `json:"session_ttl_seconds"`
}

// SessionTTL returns the session lifetime as a duration.
func (q *ServerQuotas) SessionTTL() time.Duration {
	return time.Duration(q.SessionTTLSeconds) * time.Second
}

// Validate checks that all quota values are positive.
func (q *ServerQuotas) Validate() error {
	if q.MaxUploadFileBytes <= 0 {
		return errors.New("max_upload_file_bytes must be positive")
	}
	if q.MaxRequestBodyBytes <= 0 {
		return errors.New("max_request_body_bytes must be positive")
	}
	if q.MaxUploadBatchBytes < q.MaxUploadFileBytes {
		return errors.New("max_upload_batch_bytes must be at least max_upload_file_bytes")
	}
	if q.SessionTTLSeconds <= 0 {
		return errors.New("session_ttl_seconds must be positive")
	}
	return nil
}

// DefaultServerQuotas returns the default server-wide quotas.
func DefaultServerQuotas() ServerQuotas {
	return ServerQuotas{
		MaxUploadFileBytes:  10 * 1024 * 1024,  // 10 MiB
		MaxRequestBodyBytes: 1024 * 1024,       // 1 MiB
		MaxUploadBatchBytes: 100 * 1024 * 1024, // 100 MiB
		SessionTTLSeconds:   7 * 24 * 3600,     // 7 days
	}
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	if len(c.JWTSecret) == 0 {
		return errors.New("jwt_secret is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	if err := c.Quotas.Validate(); err != nil {
		return fmt.Errorf("quotas: %w", err)
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	return nil
}

// LoadServerConfig loads configuration from dataDir/server_config.json.
// Creates the file with defaults if it doesn't exist.
// Auto-generates JWTSecret if empty.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, "server_config.json")

	cfg := ServerConfig{Quotas: DefaultServerQuotas(), RateLimits: DefaultRateLimits()}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	missing := errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		return nil, fmt.Errorf("failed to read server_config.json: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse server_config.json: %w", err)
		}
	}

	modified := false
	if len(cfg.JWTSecret) == 0 {
		cfg.JWTSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.JWTSecret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		modified = true
	}

	if modified || missing {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server_config.json: %w", err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/server_config.json.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dataDir, "server_config.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write server_config.json: %w", err)
	}
	return nil
}
