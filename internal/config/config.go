// Package config loads service settings from defaults, an optional .env file
// and TRUSTHUB_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"trusthub.org/internal/auth"
	"trusthub.org/internal/domain"
)

const envPrefix = "TRUSTHUB_"

type Config struct {
	HTTPAddr        string        `koanf:"http_addr"`
	GRPCAddr        string        `koanf:"grpc_addr"`
	DatabaseURL     string        `koanf:"database_url"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
	RateBurst       int           `koanf:"rate_burst"`
	RatePerSec      float64       `koanf:"rate_per_sec"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DBMaxOpenConns  int           `koanf:"db_max_open_conns"`
	Version         string        `koanf:"version"`

	// Comma-separated addresses or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies string `koanf:"trusted_proxies"`

	// Staff accounts are created at startup only when both fields are set.
	AdminEmail         string `koanf:"admin_email"`
	AdminPassword      string `koanf:"admin_password"`
	ArbitratorEmail    string `koanf:"arbitrator_email"`
	ArbitratorPassword string `koanf:"arbitrator_password"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":9090",
		RateBurst:       100,
		RatePerSec:      50,
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
		DBMaxOpenConns:  20,
		Version:         "dev",
	}
}

// Load reads .env from the working directory when present, then layers
// environment variables over the defaults. An empty database_url selects
// the in-memory store.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return load(os.Environ)
}

func load(environ func() []string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}

	// Unprefixed names kept for hosting platforms that inject them.
	compat := map[string]string{}
	for _, kv := range environ() {
		name, value, _ := strings.Cut(kv, "=")
		switch name {
		case "DATABASE_URL":
			compat["database_url"] = value
		case "PORT":
			compat["http_addr"] = ":" + value
		}
	}
	for key, value := range compat {
		if err := k.Set(key, value); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", key, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
		EnvironFunc: environ,
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http_addr is required")
	}
	if c.RatePerSec <= 0 || c.RateBurst <= 0 {
		return errors.New("config: rate_per_sec and rate_burst must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("config: max_body_bytes must be positive")
	}
	if _, err := c.Proxies(); err != nil {
		return err
	}
	for _, p := range []struct{ key, email, password string }{
		{"admin", c.AdminEmail, c.AdminPassword},
		{"arbitrator", c.ArbitratorEmail, c.ArbitratorPassword},
	} {
		if (p.email == "") != (p.password == "") {
			return fmt.Errorf("config: %s_email and %s_password must be set together", p.key, p.key)
		}
		if p.password != "" && len(p.password) < auth.MinStaffPasswordLen {
			return fmt.Errorf("config: %s_password must be at least %d characters", p.key, auth.MinStaffPasswordLen)
		}
	}
	return nil
}

// Proxies parses TrustedProxies. A bare address is treated as a single-host
// prefix.
func (c Config) Proxies() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(c.TrustedProxies, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("config: trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("config: trusted_proxies: %w", err)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

// Staff returns the configured staff accounts. It is empty unless the
// credentials were supplied explicitly.
func (c Config) Staff() []auth.StaffAccount {
	var out []auth.StaffAccount
	if c.AdminEmail != "" {
		out = append(out, auth.StaffAccount{Name: "Platform Admin", Email: c.AdminEmail,
			Password: c.AdminPassword, Role: domain.RoleAdmin})
	}
	if c.ArbitratorEmail != "" {
		out = append(out, auth.StaffAccount{Name: "Lead Arbitrator", Email: c.ArbitratorEmail,
			Password: c.ArbitratorPassword, Role: domain.RoleArbitrator})
	}
	return out
}
