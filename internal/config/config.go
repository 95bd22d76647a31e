package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/mail"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3001
	defaultEnv        = "development"
	defaultIssuer     = "event-planner-auth"
	defaultAudience   = "event-planner-users"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int            `yaml:"port"`
	DSN            string         `yaml:"dsn"` // MySQL DSN
	RedisURL       string         `yaml:"redis_url"`
	Env            string         `yaml:"env"` // "development" | "production"
	AllowedOrigins []string       `yaml:"allowed_origins"`
	FrontendURL    string         `yaml:"frontend_url"` // base URL for reset links
	JWT            JWTConfig      `yaml:"jwt"`
	Session        SessionConfig  `yaml:"session"`
	Security       SecurityConfig `yaml:"security"`
	Mail           mail.Config    `yaml:"mail"`
}

// JWTConfig controls token signing and verification.
type JWTConfig struct {
	Secret        string   `yaml:"secret"`
	RefreshSecret string   `yaml:"refresh_secret"` // empty = reuse Secret
	Issuer        string   `yaml:"issuer"`
	Audience      string   `yaml:"audience"`
	AccessTTL     Duration `yaml:"access_ttl"`
	RefreshTTL    Duration `yaml:"refresh_ttl"`
	ResetTTL      Duration `yaml:"reset_ttl"`
}

// SessionConfig controls session lifecycle housekeeping.
type SessionConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	InactiveGrace   Duration `yaml:"inactive_grace"`
}

// SecurityConfig holds brute-force and request-scanning knobs.
type SecurityConfig struct {
	BruteForceThreshold int      `yaml:"brute_force_threshold"`
	BruteForceWindow    Duration `yaml:"brute_force_window"`
	BruteForceLockout   Duration `yaml:"brute_force_lockout"`
	MaxBodyBytes        int64    `yaml:"max_body_bytes"`
	BlockOnHighRisk     *bool    `yaml:"block_on_high_risk"`
}

// Load reads the YAML config file, applies environment overrides and
// normalizes defaults. A missing file is not an error; env vars and
// defaults still apply.
func Load(configPath string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// config file optional; fall through to env
	default:
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required (jwt.secret or AUTH_JWT_SECRET)")
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		JWT: JWTConfig{
			Issuer:     defaultIssuer,
			Audience:   defaultAudience,
			AccessTTL:  Duration(time.Hour),
			RefreshTTL: Duration(7 * 24 * time.Hour),
			ResetTTL:   Duration(time.Hour),
		},
		Session: SessionConfig{
			CleanupInterval: Duration(time.Hour),
			InactiveGrace:   Duration(7 * 24 * time.Hour),
		},
		Security: SecurityConfig{
			BruteForceThreshold: 5,
			BruteForceWindow:    Duration(15 * time.Minute),
			BruteForceLockout:   Duration(30 * time.Minute),
			MaxBodyBytes:        1 << 20,
		},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("AUTH_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_DSN")); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_JWT_REFRESH_SECRET")); v != "" {
		cfg.JWT.RefreshSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_JWT_ISSUER")); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_JWT_AUDIENCE")); v != "" {
		cfg.JWT.Audience = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_FRONTEND_URL")); v != "" {
		cfg.FrontendURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_SMTP_HOST")); v != "" {
		cfg.Mail.Host = v
		cfg.Mail.Enable = true
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_SMTP_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Mail.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_SMTP_USER")); v != "" {
		cfg.Mail.User = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_SMTP_PASS")); v != "" {
		cfg.Mail.Pass = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_RESEND_KEY")); v != "" {
		cfg.Mail.ResendKey = v
		cfg.Mail.UseResend = true
		cfg.Mail.Enable = true
	}
}

func normalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaultPort
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = defaultIssuer
	}
	if cfg.JWT.Audience == "" {
		cfg.JWT.Audience = defaultAudience
	}
	if cfg.JWT.AccessTTL <= 0 {
		cfg.JWT.AccessTTL = Duration(time.Hour)
	}
	if cfg.JWT.RefreshTTL <= 0 {
		cfg.JWT.RefreshTTL = Duration(7 * 24 * time.Hour)
	}
	if cfg.JWT.ResetTTL <= 0 {
		cfg.JWT.ResetTTL = Duration(time.Hour)
	}
	if cfg.Session.CleanupInterval <= 0 {
		cfg.Session.CleanupInterval = Duration(time.Hour)
	}
	if cfg.Session.InactiveGrace <= 0 {
		cfg.Session.InactiveGrace = Duration(7 * 24 * time.Hour)
	}
	if cfg.Security.BruteForceThreshold <= 0 {
		cfg.Security.BruteForceThreshold = 5
	}
	if cfg.Security.BruteForceWindow <= 0 {
		cfg.Security.BruteForceWindow = Duration(15 * time.Minute)
	}
	if cfg.Security.BruteForceLockout <= 0 {
		cfg.Security.BruteForceLockout = Duration(30 * time.Minute)
	}
	if cfg.Security.MaxBodyBytes <= 0 {
		cfg.Security.MaxBodyBytes = 1 << 20
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production":
		return "production"
	default:
		return defaultEnv
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env != "production"
}

// RefreshSecretValue returns the refresh signing secret, falling back to the
// primary secret so refresh keys can be rotated independently later.
func (c *JWTConfig) RefreshSecretValue() string {
	if c.RefreshSecret != "" {
		return c.RefreshSecret
	}
	return c.Secret
}

// BlockOnHighRiskEnabled defaults to blocking when the knob is unset.
func (c *SecurityConfig) BlockOnHighRiskEnabled() bool {
	if c.BlockOnHighRisk == nil {
		return true
	}
	return *c.BlockOnHighRisk
}
