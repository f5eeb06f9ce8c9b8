package db

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/vvka-141/geoload/pkg/geoload"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 5432
	defaultSSLMode = "prefer"
)

// ParseConnectionString parses the value of --connection,
// GEOLOAD_CONNECTION_STRING or DATABASE_URL. Three forms are accepted:
//
//   - URI: postgresql://user:pass@db:5432/gis?sslmode=require
//   - libpq keyword/value: host=db port=5432 dbname=gis user=geo
//   - ADO.NET: Host=db;Port=5432;Database=gis;Username=geo
//
// Only what the string names is set. Missing host, port, database and
// sslmode stay empty so ApplyDefaults can fill them from the environment.
func ParseConnectionString(connStr string) (*geoload.ConnectionConfig, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return nil, errors.New("connection string is empty")
	}

	cfg := &geoload.ConnectionConfig{
		AuthMethod:       geoload.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	var err error
	switch {
	case strings.HasPrefix(connStr, "postgresql://"), strings.HasPrefix(connStr, "postgres://"):
		err = parseURI(cfg, connStr)
	case strings.Contains(connStr, ";") && strings.Contains(connStr, "="):
		err = parseADONET(cfg, connStr)
	case strings.Contains(connStr, "="):
		err = parseKeywordValue(cfg, connStr)
	default:
		err = errors.New("unrecognized connection string format (expected postgresql://..., key=value pairs, or Host=...;Database=...)")
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills what the connection string left out: first from the
// libpq environment variables, then localhost:5432 with sslmode=prefer.
// The database is not defaulted; a missing one is reported by the resolver.
func ApplyDefaults(cfg *geoload.ConnectionConfig, env *EnvVars) error {
	if env == nil {
		env = &EnvVars{}
	}

	cfg.Host = firstNonEmpty(cfg.Host, env.PGHOST, defaultHost)
	if cfg.Port == 0 {
		cfg.Port = defaultPort
		if env.PGPORT != "" {
			port, err := strconv.Atoi(env.PGPORT)
			if err != nil {
				return fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", env.PGPORT, geoload.ErrInvalidConfig)
			}
			cfg.Port = port
		}
	}
	cfg.Username = firstNonEmpty(cfg.Username, env.PGUSER)
	cfg.Password = firstNonEmpty(cfg.Password, env.PGPASSWORD)
	cfg.Database = firstNonEmpty(cfg.Database, env.PGDATABASE)
	cfg.SSLMode = firstNonEmpty(cfg.SSLMode, env.PGSSLMODE, defaultSSLMode)
	return nil
}

func parseURI(cfg *geoload.ConnectionConfig, connStr string) error {
	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("invalid PostgreSQL URI: %w", err)
	}

	cfg.Host = u.Hostname()
	if p := u.Port(); p != "" {
		if err := setParam(cfg, "port", p); err != nil {
			return err
		}
	}
	if u.User != nil {
		cfg.Username = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	cfg.Database = strings.TrimPrefix(u.Path, "/")

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if err := setParam(cfg, key, values[0]); err != nil {
			return err
		}
	}
	return nil
}

func parseADONET(cfg *geoload.ConnectionConfig, connStr string) error {
	for _, part := range strings.Split(connStr, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if err := setParam(cfg, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

// parseKeywordValue parses the libpq form: space-separated key=value pairs,
// values optionally single-quoted with backslash escapes.
func parseKeywordValue(cfg *geoload.ConnectionConfig, connStr string) error {
	s := connStr
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return nil
		}

		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return fmt.Errorf("missing '=' after %q in connection string", s)
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeftFunc(s[eq+1:], unicode.IsSpace)

		var value strings.Builder
		if strings.HasPrefix(s, "'") {
			s = s[1:]
			closed := false
			for len(s) > 0 {
				c := s[0]
				s = s[1:]
				if c == '\\' && len(s) > 0 {
					value.WriteByte(s[0])
					s = s[1:]
					continue
				}
				if c == '\'' {
					closed = true
					break
				}
				value.WriteByte(c)
			}
			if !closed {
				return fmt.Errorf("unterminated quoted value for %q", key)
			}
		} else {
			end := strings.IndexFunc(s, unicode.IsSpace)
			if end < 0 {
				end = len(s)
			}
			value.WriteString(s[:end])
			s = s[end:]
		}

		if err := setParam(cfg, key, value.String()); err != nil {
			return err
		}
	}
}

// setParam applies one key of any of the three forms. Keys are matched
// case-insensitively; unknown keys are passed through to pgx.
func setParam(cfg *geoload.ConnectionConfig, key, value string) error {
	switch strings.ToLower(key) {
	case "host", "server":
		cfg.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		cfg.Port = port
	case "dbname", "database", "initial catalog":
		cfg.Database = value
	case "user", "username", "user id", "uid":
		cfg.Username = value
	case "password", "pwd":
		cfg.Password = value
	case "sslmode", "ssl mode":
		cfg.SSLMode = value
	case "application_name", "applicationname", "application name":
		cfg.AppName = value
	case "connect_timeout", "connecttimeout", "connect timeout", "timeout":
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			cfg.ConnectTimeout = time.Duration(seconds) * time.Second
		}
	default:
		cfg.AdditionalParams[key] = value
	}
	return nil
}

// BuildConnectionString renders cfg as the URI handed to pgxpool.
func BuildConnectionString(cfg *geoload.ConnectionConfig) string {
	u := &url.URL{
		Scheme: "postgresql",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}

	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}

	query := url.Values{}
	for key, value := range cfg.AdditionalParams {
		query.Set(key, value)
	}
	if cfg.SSLMode != "" {
		query.Set("sslmode", cfg.SSLMode)
	}
	if cfg.AppName != "" {
		query.Set("application_name", cfg.AppName)
	}
	if cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u.RawQuery = query.Encode()
	return u.String()
}
