package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	SSLCert        string `yaml:"sslcert,omitempty"`
	SSLKey         string `yaml:"sslkey,omitempty"`
	SSLRootCert    string `yaml:"sslrootcert,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// TargetConfig names the default destination table.
type TargetConfig struct {
	Schema         string `yaml:"schema,omitempty"`
	Table          string `yaml:"table,omitempty"`
	GeometryColumn string `yaml:"geometry_column,omitempty"`
}

// LoadConfig holds defaults for the run flags.
type LoadConfig struct {
	BatchSize   int    `yaml:"batch_size,omitempty"`
	LockTimeout string `yaml:"lock_timeout,omitempty"`
	Cascade     bool   `yaml:"cascade,omitempty"`
	GenerateIDs bool   `yaml:"generate_ids,omitempty"`
	SourceSRID  int    `yaml:"source_srid,omitempty"`
	Format      string `yaml:"format,omitempty"`
	Layer       string `yaml:"layer,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Target     TargetConfig     `yaml:"target"`
	Load       LoadConfig       `yaml:"load"`
	Timeout    string           `yaml:"timeout"`
}

const ConfigFileName = "geoload.yaml"

// Load reads the config file at path.
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *ProjectConfig) validate() error {
	var errs []error
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("timeout: %w", err))
		}
	}
	if c.Load.LockTimeout != "" {
		if _, err := time.ParseDuration(c.Load.LockTimeout); err != nil {
			errs = append(errs, fmt.Errorf("load.lock_timeout: %w", err))
		}
	}
	if c.Load.BatchSize < 0 {
		errs = append(errs, errors.New("load.batch_size cannot be negative"))
	}
	if c.Load.SourceSRID < 0 {
		errs = append(errs, errors.New("load.source_srid cannot be negative"))
	}
	return errors.Join(errs...)
}

// TimeoutDuration returns the parsed timeout, or zero when unset.
func (c *ProjectConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// LockTimeoutDuration returns the parsed lock timeout, or zero when unset.
func (c *ProjectConfig) LockTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Load.LockTimeout)
	return d
}
