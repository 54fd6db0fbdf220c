// Package config loads settings from an optional YAML file with
// environment-variable overrides. The .env file itself is loaded by
// the cmd entrypoints before this package runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole tree; each binary reads its own section.
type Config struct {
	Backend   Backend   `yaml:"backend"`
	Devserver Devserver `yaml:"devserver"`
}

// Backend is what the client needs to reach the hosted service or the
// local emulator.
type Backend struct {
	URL string `yaml:"url"`
}

// Duration decodes YAML strings like "30m" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Devserver configures the local emulator.
type Devserver struct {
	Addr           string        `yaml:"addr"`
	JWTSecret      string        `yaml:"jwtSecret"`
	TokenTTL       Duration      `yaml:"tokenTTL"`
	Autoconfirm    bool          `yaml:"autoconfirm"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	Store          string        `yaml:"store"`
	DSN            string        `yaml:"dsn"`
	MaxObjectSize  int64         `yaml:"maxObjectSize"`
	LoginRPS       float64       `yaml:"loginRPS"`
	LoginBurst     int           `yaml:"loginBurst"`
}

func defaults() Config {
	return Config{
		Backend: Backend{
			URL: "http://localhost:8080",
		},
		Devserver: Devserver{
			Addr:           ":8080",
			JWTSecret:      "dev-secret",
			TokenTTL:       Duration(24 * time.Hour),
			Autoconfirm:    true,
			AllowedOrigins: []string{"*"},
			Store:          "sqlite",
			DSN:            "mensageiro.db",
			MaxObjectSize:  1 << 20,
			LoginRPS:       1,
			LoginBurst:     5,
		},
	}
}

// Load reads the config file at path (or the first of the default
// candidates that exists), then applies environment overrides. A
// missing file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := defaults()

	candidates := []string{path}
	if path == "" {
		candidates = []string{"mensageiro.yaml", "configs/mensageiro.yaml"}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", candidate, err)
		}
		break
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("DEVSERVER_ADDR"); v != "" {
		cfg.Devserver.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Devserver.JWTSecret = v
	}
	if v := os.Getenv("DEV_AUTOCONFIRM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Devserver.Autoconfirm = b
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Devserver.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("STORE"); v != "" {
		cfg.Devserver.Store = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Devserver.DSN = v
	}
}
