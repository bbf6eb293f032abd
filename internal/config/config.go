// Package config defines the JSON (or YAML) configuration model for the
// replicator. A config file names the tables to replicate, the replication
// mode, where column presence comes from, and where json-mode documents go.
//
// Example (trimmed):
//
//	{
//	  "job": "nightly",
//	  "mode": "json",
//	  "discovery": "catalog",
//	  "tables": [{ "name": "orders" }, { "name": "events", "mode": "copy" }],
//	  "sink": { "kind": "postgres", "schema": "transform", "suffix": "_data" }
//	}
//
// Connection strings are usually left out of the file and taken from the
// environment (POSTGRES_URL_SOURCE, POSTGRES_URL_TARGET).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Replication modes.
const (
	ModeJSON = "json"
	ModeCopy = "copy"
)

// Column discovery modes.
const (
	DiscoveryCatalog     = "catalog"
	DiscoveryColumnsFile = "columns_file"
)

// Table error policies. The empty policy picks the per-discovery default.
const (
	OnErrorContinue = "continue"
	OnErrorAbort    = "abort"
)

// Default environment variables for the connection strings.
const (
	EnvSourceDSN = "POSTGRES_URL_SOURCE"
	EnvTargetDSN = "POSTGRES_URL_TARGET"
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job"`

	// Mode is the default replication mode for tables without their own:
	// "json" or "copy".
	Mode string `json:"mode" yaml:"mode"`

	// Discovery selects how watermark column presence is determined:
	// "catalog" (information_schema on the source) or "columns_file".
	Discovery string `json:"discovery" yaml:"discovery"`

	// ColumnsDir holds one "<table>.txt" file per table for columns_file
	// discovery. With no Tables configured, every file there is a table.
	ColumnsDir string `json:"columns_dir" yaml:"columns_dir"`

	// IgnoreColumnPrefix skips ingestion bookkeeping columns in column files.
	IgnoreColumnPrefix string `json:"ignore_column_prefix" yaml:"ignore_column_prefix"`

	Source Endpoint `json:"source" yaml:"source"`
	Target Endpoint `json:"target" yaml:"target"`

	// SSLMode is appended to both connection strings unless they carry one.
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode"`

	Tables []Table `json:"tables" yaml:"tables"`

	// CellLimit bounds the cells written per json-mode table per run; the row
	// cap is CellLimit divided by the two sink columns. Zero or less disables
	// the cap.
	CellLimit int `json:"cell_limit" yaml:"cell_limit"`

	Watermark Watermark `json:"watermark" yaml:"watermark"`
	Sink      Sink      `json:"sink" yaml:"sink"`

	// OnTableError overrides what happens after a table fails with a query
	// or transfer error: "continue" or "abort".
	OnTableError string `json:"on_table_error" yaml:"on_table_error"`

	Runtime Runtime `json:"runtime" yaml:"runtime"`
}

// Endpoint describes one Postgres connection. DSN wins over DSNEnv.
type Endpoint struct {
	DSN    string `json:"dsn" yaml:"dsn"`
	DSNEnv string `json:"dsn_env" yaml:"dsn_env"`
}

// Table is one replicated table, optionally schema-qualified.
type Table struct {
	Name string `json:"name" yaml:"name"`
	// Mode overrides Config.Mode for this table.
	Mode string `json:"mode" yaml:"mode"`
}

// Watermark names the columns used for incremental extraction.
type Watermark struct {
	Created  string `json:"created" yaml:"created"`
	Updated  string `json:"updated" yaml:"updated"`
	Identity string `json:"identity" yaml:"identity"`
}

// Sink configures where json-mode documents are appended.
type Sink struct {
	// Kind selects a registered storage backend (postgres, sqlite, mssql, mysql).
	Kind string `json:"kind" yaml:"kind"`

	// DSN of the sink. Empty means the target connection string.
	DSN string `json:"dsn" yaml:"dsn"`

	Schema string `json:"schema" yaml:"schema"`
	Suffix string `json:"suffix" yaml:"suffix"`

	// AutoCreate creates missing sink tables. Defaults to true.
	AutoCreate *bool `json:"auto_create" yaml:"auto_create"`
}

// AutoCreateEnabled reports the effective auto_create setting.
func (s Sink) AutoCreateEnabled() bool {
	return s.AutoCreate == nil || *s.AutoCreate
}

// Runtime controls concurrency, throttling and scheduling.
type Runtime struct {
	// Workers is the number of tables replicated at once. 1 is sequential.
	Workers int `json:"workers" yaml:"workers"`

	// RowsPerSecond throttles json-mode appends per table. Zero disables it.
	RowsPerSecond float64 `json:"rows_per_second" yaml:"rows_per_second"`

	// Schedule is a cron expression for repeated runs. Empty runs once.
	Schedule string `json:"schedule" yaml:"schedule"`
}

// Load reads and decodes the config file at path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	c, err := Parse(b, IsYAML(path))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// IsYAML reports whether path names a YAML file.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Parse decodes a config document. Unknown fields are rejected so typos
// surface instead of silently falling back to defaults.
func Parse(b []byte, isYAML bool) (Config, error) {
	var c Config
	if isYAML {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return Config{}, fmt.Errorf("decode yaml: %w", err)
		}
		return c, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode json: %w", err)
	}
	return c, nil
}

// WithDefaults returns a copy of c with every unset field defaulted.
func (c Config) WithDefaults() Config {
	if c.Job == "" {
		c.Job = "replicator"
	}
	if c.Mode == "" {
		c.Mode = ModeJSON
	}
	if c.Discovery == "" {
		c.Discovery = DiscoveryCatalog
	}
	if c.IgnoreColumnPrefix == "" {
		c.IgnoreColumnPrefix = "_airbyte"
	}
	if c.Source.DSNEnv == "" {
		c.Source.DSNEnv = EnvSourceDSN
	}
	if c.Target.DSNEnv == "" {
		c.Target.DSNEnv = EnvTargetDSN
	}
	if c.SSLMode == "" {
		c.SSLMode = "require"
	}
	if c.CellLimit == 0 {
		c.CellLimit = 65000
	}
	if c.Watermark.Created == "" {
		c.Watermark.Created = "created_at"
	}
	if c.Watermark.Updated == "" {
		c.Watermark.Updated = "updated_at"
	}
	if c.Watermark.Identity == "" {
		c.Watermark.Identity = "id"
	}
	if c.Sink.Kind == "" {
		c.Sink.Kind = "postgres"
	}
	if c.Sink.Schema == "" {
		c.Sink.Schema = "transform"
	}
	if c.Sink.Suffix == "" {
		c.Sink.Suffix = "_data"
	}
	if c.Runtime.Workers <= 0 {
		c.Runtime.Workers = 1
	}
	c.Tables = append([]Table(nil), c.Tables...)
	return c
}

// ResolveDSNs fills empty connection strings from the environment through
// getenv. The sink falls back to the target connection string.
func (c Config) ResolveDSNs(getenv func(string) string) Config {
	if c.Source.DSN == "" && c.Source.DSNEnv != "" {
		c.Source.DSN = getenv(c.Source.DSNEnv)
	}
	if c.Target.DSN == "" && c.Target.DSNEnv != "" {
		c.Target.DSN = getenv(c.Target.DSNEnv)
	}
	if c.Sink.DSN == "" {
		c.Sink.DSN = c.Target.DSN
	}
	return c
}

// TableMode is the effective mode of t.
func (c Config) TableMode(t Table) string {
	if t.Mode != "" {
		return t.Mode
	}
	return c.Mode
}

// UsesMode reports whether any configured table runs in mode m. With no
// tables configured the run-level mode decides.
func (c Config) UsesMode(m string) bool {
	if len(c.Tables) == 0 {
		return c.Mode == m
	}
	for _, t := range c.Tables {
		if c.TableMode(t) == m {
			return true
		}
	}
	return false
}

// AbortOnTableError reports whether a failed table stops the run. Catalog
// discovery continues with the next table; column-file discovery aborts.
func (c Config) AbortOnTableError() bool {
	switch c.OnTableError {
	case OnErrorAbort:
		return true
	case OnErrorContinue:
		return false
	}
	return c.Discovery == DiscoveryColumnsFile
}
