// Package config loads fango settings from a settings file and the
// environment.
//
// The file named by FANGO_SETTINGS_MODULE is read first: ".yaml" and ".yml"
// files are parsed as a flat mapping of KEY: value, anything else as a dotenv
// file. File values never override variables that are already present in the
// environment. The merged environment is then decoded into Settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const SettingsModuleEnv = "FANGO_SETTINGS_MODULE"

type Settings struct {
	Debug bool   `env:"DEBUG,default=false"`
	Addr  string `env:"ADDR,default=:8000"`

	DatabaseDriver string `env:"DATABASE_DRIVER,default=sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN,default=fango.db"`

	SecretKey string `env:"SECRET_KEY"`
	PublicKey string `env:"PUBLIC_KEY"`
	Algorithm string `env:"ALGORITHM,default=HS256"`
	// AccessTokenExpireMinutes of zero falls back to 15 minutes.
	AccessTokenExpireMinutes int      `env:"ACCESS_TOKEN_EXPIRE_MINUTES,default=15"`
	RequestUserFields        []string `env:"REQUEST_USER_FIELDS"`
	PasswordIterations       int      `env:"PASSWORD_ITERATIONS,default=870000"`

	AppendSlash      bool `env:"APPEND_SLASH,default=true"`
	EnableCallLog    bool `env:"ENABLE_CALL_LOG,default=false"`
	PageSize         int  `env:"PAGE_SIZE,default=15"`
	MountConcurrency int  `env:"MOUNT_CONCURRENCY,default=16"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=20"`

	MetricsEnabled bool   `env:"METRICS_ENABLED,default=false"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogJSON        bool   `env:"LOG_JSON,default=false"`
}

var supportedAlgorithms = []string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512"}

// Load reads the settings file, if any, and decodes the environment.
func Load() (*Settings, error) {
	if path := os.Getenv(SettingsModuleEnv); path != "" {
		if err := loadFile(path); err != nil {
			return nil, err
		}
	}

	s := new(Settings)
	err := envdecode.Decode(s)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	if err = s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if !slices.Contains(supportedAlgorithms, s.Algorithm) {
		return fmt.Errorf("unsupported ALGORITHM %q", s.Algorithm)
	}
	if s.SecretKey == "" {
		return errors.New("SECRET_KEY must be set")
	}
	if strings.HasPrefix(s.Algorithm, "RS") && s.PublicKey == "" {
		return fmt.Errorf("PUBLIC_KEY must be set for %s", s.Algorithm)
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", s.PageSize)
	}
	if s.MountConcurrency <= 0 {
		return fmt.Errorf("MOUNT_CONCURRENCY must be positive, got %d", s.MountConcurrency)
	}
	if s.RateLimitRPS > 0 && s.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set, got %d", s.RateLimitBurst)
	}
	return nil
}

func loadFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load settings %s: %w", path, err)
		}
		return nil
	}
}

func loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings %s: %w", path, err)
	}

	var values map[string]any
	if err = yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}

	for key, value := range values {
		key = strings.ToUpper(key)
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err = os.Setenv(key, envValue(value)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// envValue renders a yaml scalar or sequence the way envdecode expects it.
// Sequences are joined with ';'.
func envValue(v any) string {
	switch vt := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(vt))
		for _, item := range vt {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(vt)
	}
}
