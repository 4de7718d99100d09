package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/errs"

	"songetl/internal/objectstore"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is logged and the run proceeds.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is the dotted config key.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static checks and returns every finding. It does not
// mutate c.
func (c *Config) Validate() []Issue {
	var issues []Issue
	issues = append(issues, validateInput(c.Input)...)
	issues = append(issues, validateOutput(c.Output)...)
	issues = append(issues, validateS3(c)...)
	issues = append(issues, validateTransform(c.Transform)...)
	issues = append(issues, validateRuntime(c.Runtime)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateLog(c.Log)...)
	return issues
}

// Err folds the error-severity issues into one config.Error, or nil.
func Err(issues []Issue) error {
	var group errs.Group
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			group.Add(Error.Wrap(iss))
		}
	}
	return group.Err()
}

func validateInput(in InputConfig) []Issue {
	var issues []Issue
	if strings.TrimSpace(in.Base) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input.base",
			Message:  "input location must not be empty",
		})
	}
	if in.SongPath == in.LogPath {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input.log_path",
			Message:  fmt.Sprintf("song_path and log_path are both %q; the two record families must not share a root", in.SongPath),
		})
	}
	if in.Pattern == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "input.pattern",
			Message:  "empty pattern matches every file under the input roots",
		})
	}
	return issues
}

func validateOutput(out OutputConfig) []Issue {
	var issues []Issue
	if strings.TrimSpace(out.Base) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.base",
			Message:  "output location must not be empty",
		})
	}

	known := map[string]struct{}{
		"":         {},
		"parquet":  {},
		"postgres": {},
		"sqlite":   {},
	}
	if _, ok := known[out.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.kind",
			Message:  fmt.Sprintf("unknown output kind %q; ensure a matching backend is registered", out.Kind),
		})
	}
	if out.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; the backend default applies", out.BatchSize),
		})
	}
	return issues
}

func validateS3(c *Config) []Issue {
	var issues []Issue
	if !c.UsesS3() {
		return nil
	}
	if c.S3.Region == "" && c.S3.Endpoint == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "s3.region",
			Message:  "no region or endpoint configured; relying on the AWS SDK default chain",
		})
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "s3.access_key_id",
			Message:  "access_key_id and secret_access_key must be set together",
		})
	}
	if objectstore.IsURL(c.Output.Base) && c.Output.Kind != "" && c.Output.Kind != "parquet" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.kind",
			Message:  fmt.Sprintf("s3 outputs are written as parquet, not %q", c.Output.Kind),
		})
	}
	return issues
}

func validateTransform(t TransformConfig) []Issue {
	var issues []Issue
	if t.Timezone != "" {
		if _, err := time.LoadLocation(t.Timezone); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "transform.timezone",
				Message:  fmt.Sprintf("unknown timezone %q: %v", t.Timezone, err),
			})
		}
	}
	switch strings.ToLower(t.Matcher) {
	case "", "exact", "folded":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform.matcher",
			Message:  fmt.Sprintf("unknown matcher %q; use exact or folded", t.Matcher),
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	if r.ReaderWorkers < 0 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "runtime.reader_workers",
			Message:  "reader_workers must not be negative",
		}}
	}
	return nil
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		})
	}
	if m.Backend != "" && m.Backend != "none" && strings.TrimSpace(m.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.job",
			Message:  "job is empty; metrics will be grouped under the backend default",
		})
	}
	return issues
}

func validateLog(l LogConfig) []Issue {
	var issues []Issue
	if _, err := zerolog.ParseLevel(strings.ToLower(l.Level)); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log.level",
			Message:  fmt.Sprintf("unknown level %q", l.Level),
		})
	}
	switch l.Format {
	case "", "json", "console":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "log.format",
			Message:  fmt.Sprintf("unknown format %q; using json", l.Format),
		})
	}
	return issues
}
