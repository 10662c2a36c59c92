package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/usufslc/aggie-auth/core"
	sqlstore "github.com/usufslc/aggie-auth/store/sql"
	"github.com/usufslc/aggie-auth/transport"
	"gopkg.in/yaml.v3"
)

// Settings holds the process level configuration read from the environment.
// Broker behavior lives in core.Config and may also come from a YAML file.
type Settings struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`

	// CacheTTL bounds how long another instance may keep authorizing an
	// updated or deleted api credential. Eviction on write is process local.
	CacheTTL time.Duration `env:"API_CREDENTIAL_CACHE_TTL" envDefault:"30s"`

	APIHost         string `env:"API_HOST"`
	DefaultCallback string `env:"AGGIE_DEFAULT_CALLBACK"`
	MailDomain      string `env:"AGGIE_MAIL_DOMAIN"`

	Database  DatabaseSettings
	Transport TransportSettings
}

type DatabaseSettings struct {
	Driver   string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_DB" envDefault:"aggie_auth"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	Debug    bool   `env:"DATABASE_DEBUG"`
}

type TransportSettings struct {
	Kind           string `env:"AGGIE_TRANSPORT" envDefault:"smtp"`
	SMTPHost       string `env:"SMTP_HOST" envDefault:"mail.linux.usu.edu"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	Username       string `env:"FSLC_USERNAME"`
	Password       string `env:"FSLC_PASSWORD"`
	From           string `env:"FSLC_FROM"`
	RelayEndpoint  string `env:"RELAY_ENDPOINT"`
	RelayAuthToken string `env:"RELAY_AUTH_TOKEN"`
}

func loadSettings() (Settings, error) {
	var settings Settings
	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return settings, nil
}

// DatabaseConfig resolves the connection settings. DATABASE_URL wins over
// the discrete POSTGRES_* values.
func (s Settings) DatabaseConfig() sqlstore.DatabaseConfig {
	driver := strings.ToLower(strings.TrimSpace(s.Database.Driver))
	if driver == "sqlite" {
		driver = sqlstore.DriverSQLite
	}
	dsn := strings.TrimSpace(s.Database.URL)
	if dsn == "" && driver == sqlstore.DriverPostgres {
		dsn = sqlstore.PostgresDSN(
			s.Database.Host,
			s.Database.Port,
			s.Database.User,
			s.Database.Password,
			s.Database.Name,
			s.Database.SSLMode,
		)
	}
	return sqlstore.DatabaseConfig{
		Driver:          driver,
		DSN:             dsn,
		Debug:           s.Database.Debug,
		ConnectAttempts: sqlstore.DefaultConnectAttempts,
		ConnectInterval: sqlstore.DefaultConnectInterval,
	}
}

// TransportConfig is the settings map handed to the transport registry.
func (s Settings) TransportConfig() map[string]any {
	return map[string]any{
		"host":        s.Transport.SMTPHost,
		"port":        s.Transport.SMTPPort,
		"username":    s.Transport.Username,
		"password":    s.Transport.Password,
		"from":        s.Transport.From,
		"require_tls": true,
		"endpoint":    s.Transport.RelayEndpoint,
		"auth_token":  s.Transport.RelayAuthToken,
	}
}

// RuntimeConfig is the highest precedence layer of core.Config. Only values
// set in the environment take part in the merge.
func (s Settings) RuntimeConfig() core.Config {
	return core.Config{
		APIHost:         strings.TrimSpace(s.APIHost),
		DefaultCallback: strings.TrimSpace(s.DefaultCallback),
		Mail: core.MailConfig{
			Domain: strings.TrimSpace(s.MailDomain),
		},
	}
}

func (s Settings) Addr(override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf(":%d", s.Port)
}

// yamlConfigLoader feeds a YAML file into the cfgx config provider. A missing
// path yields an empty layer.
type yamlConfigLoader struct {
	path     string
	readFile func(string) ([]byte, error)
}

func newYAMLConfigLoader(path string) yamlConfigLoader {
	return yamlConfigLoader{path: strings.TrimSpace(path), readFile: os.ReadFile}
}

func (l yamlConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l.path == "" {
		return map[string]any{}, nil
	}
	data, err := l.readFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found: %w", l.path, err)
		}
		return nil, fmt.Errorf("read config file %s: %w", l.path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", l.path, err)
	}
	return raw, nil
}

var _ core.RawConfigLoader = yamlConfigLoader{}

func transportKinds() string {
	return strings.Join([]string{transport.KindSMTP, transport.KindRelay, transport.KindLog}, "|")
}
