package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rowbridge/types"
)

type Table struct {
	Schema string `yaml:"schema"`
	Name   string `yaml:"name"`
	// Columns override the discovered declared type of the named columns.
	Columns []types.FieldSpec `yaml:"columns"`
}

func (t Table) QualifiedName() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

type Config struct {
	LogLevel string `yaml:"log_level"`

	Postgres struct {
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Database    string `yaml:"database"`
		Slot        string `yaml:"slot"`
		Publication string `yaml:"publication"`
	} `yaml:"postgres"`

	Tables []Table `yaml:"tables"`

	Iceberg struct {
		Path string `yaml:"path"`
	} `yaml:"iceberg"`

	Storage struct {
		Type   string `yaml:"type"`
		Bucket string `yaml:"bucket"`
		Prefix string `yaml:"prefix"`
		Region string `yaml:"region"`
	} `yaml:"storage"`

	Proxy struct {
		Port int `yaml:"port"`
	} `yaml:"proxy"`
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Proxy.Port == 0 {
		c.Proxy.Port = 5433
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageLocal
	}
}

func (c *Config) Validate() error {
	if len(c.Tables) > 0 {
		if c.Postgres.Slot == "" {
			return fmt.Errorf("postgres.slot is required when tables are configured")
		}
		if c.Postgres.Publication == "" {
			return fmt.Errorf("postgres.publication is required when tables are configured")
		}
	}
	for _, t := range c.Tables {
		if t.Schema == "" || t.Name == "" {
			return fmt.Errorf("table entries need both schema and name")
		}
		for _, col := range t.Columns {
			if col.Name == "" || col.Type == "" {
				return fmt.Errorf("table %s: columns need both name and type", t.QualifiedName())
			}
		}
	}

	switch c.Storage.Type {
	case StorageLocal:
	case StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	return nil
}

// PostgresURL returns the connection URL, optionally for a replication
// connection.
func (c *Config) PostgresURL(replication bool) string {
	url := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Database,
	)
	if replication {
		url += "?replication=database"
	}
	return url
}
