package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validConfig() *Config {
	cfg := Default()
	cfg.ApplyArgs("data", "out")
	return cfg
}

func TestValidate_ValidMinimal(t *testing.T) {
	t.Parallel()

	issues := validConfig().Validate()
	if len(issues) != 0 {
		t.Fatalf("Validate() = %+v, want no issues", issues)
	}
	if err := Err(issues); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

func TestValidate_Findings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing input", func(c *Config) { c.Input.Base = "" }, SeverityError, "input.base", "must not be empty"},
		{"missing output", func(c *Config) { c.Output.Base = " " }, SeverityError, "output.base", "must not be empty"},
		{"shared roots", func(c *Config) { c.Input.LogPath = c.Input.SongPath }, SeverityError, "input.log_path", "must not share"},
		{"empty pattern", func(c *Config) { c.Input.Pattern = "" }, SeverityWarning, "input.pattern", "every file"},
		{"unknown kind", func(c *Config) { c.Output.Kind = "orc" }, SeverityWarning, "output.kind", `"orc"`},
		{"zero batch", func(c *Config) { c.Output.BatchSize = 0 }, SeverityWarning, "output.batch_size", "backend default"},
		{"bad timezone", func(c *Config) { c.Transform.Timezone = "Nowhere/Land" }, SeverityError, "transform.timezone", "unknown timezone"},
		{"bad matcher", func(c *Config) { c.Transform.Matcher = "fuzzy" }, SeverityError, "transform.matcher", "exact or folded"},
		{"negative workers", func(c *Config) { c.Runtime.ReaderWorkers = -1 }, SeverityError, "runtime.reader_workers", "negative"},
		{"pushgateway without url", func(c *Config) { c.Metrics.Backend = "pushgateway" }, SeverityError, "metrics.pushgateway_url", "requires"},
		{"datadog without addr", func(c *Config) { c.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "requires"},
		{"unknown metrics", func(c *Config) { c.Metrics.Backend = "graphite" }, SeverityError, "metrics.backend", "graphite"},
		{"empty job", func(c *Config) {
			c.Metrics.Backend = "datadog"
			c.Metrics.DatadogAddr = "127.0.0.1:8125"
			c.Metrics.Job = ""
		}, SeverityWarning, "metrics.job", "job is empty"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, SeverityError, "log.level", "loud"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, SeverityWarning, "log.format", "xml"},
		{"s3 without region", func(c *Config) { c.Input.Base = "s3://udacity-dend" }, SeverityWarning, "s3.region", "default chain"},
		{"s3 half credentials", func(c *Config) {
			c.Output.Base = "s3://lake/out"
			c.S3.Region = "us-west-2"
			c.S3.AccessKeyID = "AKIA"
		}, SeverityError, "s3.access_key_id", "set together"},
		{"s3 to sql kind", func(c *Config) {
			c.Output.Base = "s3://lake/out"
			c.S3.Region = "us-west-2"
			c.Output.Kind = "sqlite"
		}, SeverityError, "output.kind", "parquet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			issues := cfg.Validate()
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

func TestErr_OnlyErrors(t *testing.T) {
	t.Parallel()

	warn := Issue{Severity: SeverityWarning, Path: "output.kind", Message: "w"}
	if err := Err([]Issue{warn}); err != nil {
		t.Fatalf("Err(warnings) = %v, want nil", err)
	}

	bad := Issue{Severity: SeverityError, Path: "input.base", Message: "input location must not be empty"}
	err := Err([]Issue{warn, bad})
	if err == nil {
		t.Fatalf("Err(errors) = nil")
	}
	if !Error.Has(err) {
		t.Fatalf("Err() = %v, want config error class", err)
	}
	if !strings.Contains(err.Error(), "error at input.base") {
		t.Fatalf("Err() = %q, want the issue text", err.Error())
	}
}
