package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "sink.kind", "tables[1].mode").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of a config that already had
// WithDefaults and ResolveDSNs applied. It does not touch the network or
// the filesystem.
//
// knownSinks lists the registered sink kinds; nil skips that check.
func Validate(c Config, knownSinks []string) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels logs and metrics")
	}
	if !validMode(c.Mode) {
		add(SeverityError, "mode", "unknown mode %q; want %q or %q", c.Mode, ModeJSON, ModeCopy)
	}

	switch c.Discovery {
	case DiscoveryCatalog:
		if len(c.Tables) == 0 {
			add(SeverityError, "tables", "catalog discovery needs at least one table")
		}
	case DiscoveryColumnsFile:
		if strings.TrimSpace(c.ColumnsDir) == "" {
			add(SeverityError, "columns_dir", "columns_file discovery requires columns_dir")
		}
	default:
		add(SeverityError, "discovery", "unknown discovery %q; want %q or %q",
			c.Discovery, DiscoveryCatalog, DiscoveryColumnsFile)
	}

	seen := make(map[string]int, len(c.Tables))
	for i, t := range c.Tables {
		path := fmt.Sprintf("tables[%d]", i)
		name := strings.TrimSpace(t.Name)
		if name == "" {
			add(SeverityError, path+".name", "table name must not be empty")
			continue
		}
		if j, dup := seen[name]; dup {
			add(SeverityWarning, path+".name", "table %q is also listed at tables[%d]; it will be replicated twice", name, j)
		} else {
			seen[name] = i
		}
		if t.Mode != "" && !validMode(t.Mode) {
			add(SeverityError, path+".mode", "unknown mode %q", t.Mode)
		}
	}

	if c.Source.DSN == "" {
		add(SeverityError, "source.dsn", "source connection string is empty; set source.dsn or $%s", c.Source.DSNEnv)
	}
	if c.Target.DSN == "" {
		add(SeverityError, "target.dsn", "target connection string is empty; set target.dsn or $%s", c.Target.DSNEnv)
	}

	switch c.SSLMode {
	case "require", "verify-ca", "verify-full":
	case "disable", "allow", "prefer":
		add(SeverityWarning, "ssl_mode", "ssl_mode=%s does not enforce TLS", c.SSLMode)
	default:
		add(SeverityError, "ssl_mode", "unknown ssl_mode %q", c.SSLMode)
	}

	for _, wc := range []struct{ path, col string }{
		{"watermark.created", c.Watermark.Created},
		{"watermark.updated", c.Watermark.Updated},
		{"watermark.identity", c.Watermark.Identity},
	} {
		if strings.TrimSpace(wc.col) == "" {
			add(SeverityError, wc.path, "watermark column must not be empty")
		}
	}

	if c.UsesMode(ModeJSON) {
		issues = append(issues, validateSink(c.Sink, knownSinks)...)
		if c.CellLimit < 0 {
			add(SeverityWarning, "cell_limit", "cell_limit=%d; json-mode extraction is unbounded", c.CellLimit)
		}
	}

	switch c.OnTableError {
	case "", OnErrorContinue, OnErrorAbort:
	default:
		add(SeverityError, "on_table_error", "unknown policy %q; want %q or %q",
			c.OnTableError, OnErrorContinue, OnErrorAbort)
	}

	issues = append(issues, validateRuntime(c.Runtime)...)
	return issues
}

func validMode(m string) bool {
	return m == ModeJSON || m == ModeCopy
}

func validateSink(s Sink, known []string) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.kind",
			Message:  "sink.kind must not be empty",
		})
	}
	if known != nil && !contains(known, s.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.kind",
			Message:  fmt.Sprintf("unknown sink kind %q; registered: %s", s.Kind, strings.Join(known, ", ")),
		})
	}
	if s.DSN == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.dsn",
			Message:  "sink connection string is empty",
		})
	}
	if !s.AutoCreateEnabled() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sink.auto_create",
			Message:  "auto_create is off; sink tables must already exist",
		})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.RowsPerSecond < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.rows_per_second",
			Message:  "rows_per_second must not be negative",
		})
	}
	if r.Schedule != "" {
		if _, err := cron.ParseStandard(r.Schedule); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "runtime.schedule",
				Message:  fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	return issues
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
