package config

// This file adds a lightweight linter for Pipeline values. It performs static
// checks over a decoded Pipeline and returns issues (errors and warnings) the
// CLI prints before a run.

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the config such
// as "storage.db.dsn" or "transform[0].options.cast_int".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints p without mutating it.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateTransforms(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	}

	if s.Partition != nil {
		pt := s.Partition
		if strings.TrimSpace(pt.Dataset) == "" {
			issues = append(issues, Issue{SeverityError, "source.partition.dataset", "partition requires a dataset"})
		}
		if pt.Month < 1 || pt.Month > 12 {
			issues = append(issues, Issue{SeverityError, "source.partition.month", fmt.Sprintf("month=%d; want 1..12", pt.Month)})
		}
		if pt.Year < 1900 || pt.Year > 9999 {
			issues = append(issues, Issue{SeverityError, "source.partition.year", fmt.Sprintf("year=%d is not a plausible year", pt.Year)})
		}
	}
	hasPart := s.Partition != nil

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" && !hasPart {
			issues = append(issues, Issue{SeverityError, "source.file.path", "file source requires a non-empty path"})
		}
	case "azblob":
		a := s.AzBlob
		if a.URL == "" && (a.Account == "" || a.Container == "") {
			issues = append(issues, Issue{SeverityError, "source.azblob", "azblob source requires url, or account and container"})
		}
		if a.URL == "" && a.Path == "" && !hasPart {
			issues = append(issues, Issue{SeverityError, "source.azblob.path", "azblob source requires a blob path"})
		}
		if a.URL != "" && hasPart {
			issues = append(issues, Issue{SeverityWarning, "source.partition", "partition is ignored when source.azblob.url is set"})
		}
		if a.URL != "" && strings.Contains(a.URL, "sig=") {
			issues = append(issues, Issue{SeverityError, "source.azblob.url", "url carries a SAS signature; inject credentials from the environment instead"})
		}
	case "s3", "gcs":
		b := s.S3
		if s.Kind == "gcs" {
			b = s.GCS
		}
		if strings.TrimSpace(b.Bucket) == "" {
			issues = append(issues, Issue{SeverityError, "source." + s.Kind + ".bucket", s.Kind + " source requires a bucket"})
		}
		if strings.TrimSpace(b.Key) == "" && !hasPart {
			issues = append(issues, Issue{SeverityError, "source." + s.Kind + ".key", s.Kind + " source requires an object key"})
		}
	case "http":
		u := strings.ToLower(strings.TrimSpace(s.HTTP.URL))
		switch {
		case u == "":
			issues = append(issues, Issue{SeverityError, "source.http.url", "http source requires a url"})
		case !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://"):
			issues = append(issues, Issue{SeverityError, "source.http.url", "url must be an absolute http(s) URL"})
		case strings.HasPrefix(u, "http://"):
			issues = append(issues, Issue{SeverityWarning, "source.http.url", "plain http; prefer https"})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want file, azblob, s3, gcs or http", s.Kind),
		})
	}

	return issues
}

func validateParser(p Parser) []Issue {
	switch strings.TrimSpace(p.Kind) {
	case "":
		return []Issue{{SeverityError, "parser.kind", "parser.kind must not be empty"}}
	case "parquet":
		return nil
	default:
		return []Issue{{SeverityError, "parser.kind", fmt.Sprintf("unknown parser kind %q; only parquet is supported", p.Kind)}}
	}
}

func validateTransforms(ts []Transform) []Issue {
	var issues []Issue

	if len(ts) == 0 {
		return append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "transform",
			Message:  "no transforms configured; the yellow_tripdata normalize preset will be used",
		})
	}

	seen := 0
	for i, t := range ts {
		path := fmt.Sprintf("transform[%d]", i)
		switch strings.TrimSpace(t.Kind) {
		case "":
			issues = append(issues, Issue{SeverityError, path + ".kind", "transform kind must not be empty"})
			continue
		case "normalize":
			seen++
		default:
			issues = append(issues, Issue{SeverityError, path + ".kind", fmt.Sprintf("unknown transform kind %q; only normalize is supported", t.Kind)})
			continue
		}
		if seen > 1 {
			issues = append(issues, Issue{SeverityError, path, "normalize may appear once; renaming twice fails by construction"})
		}
		if preset := t.Options.String("preset", "yellow_tripdata"); preset != "yellow_tripdata" && preset != "none" {
			issues = append(issues, Issue{SeverityError, path + ".options.preset", fmt.Sprintf("unknown preset %q", preset)})
		}
		if t.Options.Has("cast_int") && t.Options.StringSlice("cast_int") == nil {
			issues = append(issues, Issue{SeverityError, path + ".options.cast_int", "cast_int must be an array of column names"})
		}
		if t.Options.Has("rename") && t.Options.Map("rename") == nil {
			issues = append(issues, Issue{SeverityError, path + ".options.rename", "rename must be an object of source -> target"})
		}
		if fill := t.Options.Map("fill"); fill != nil {
			for col, v := range fill {
				if _, ok := v.(float64); !ok {
					issues = append(issues, Issue{SeverityError, path + ".options.fill." + col, "fill values must be numbers"})
				}
			}
		}
	}

	return issues
}

var passwordInDSN = regexp.MustCompile(`(?i)(password|pwd)\s*=\s*[^;&${]`)

func validateStorage(s Storage) []Issue {
	var issues []Issue

	kind := strings.TrimSpace(s.Kind)
	switch kind {
	case "":
		return append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	case "synapse", "mssql", "postgres", "sqlite":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; want synapse, mssql, postgres or sqlite", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.dsn", "storage.db.dsn must not be empty"})
	} else if hasLiteralPassword(db.DSN) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "dsn contains a literal password; set TAXIETL_WAREHOUSE_PASSWORD or use a ${VAR} placeholder",
		})
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.table", "storage.db.table must not be empty"})
	}
	switch db.Mode {
	case "", "overwrite":
	case "append":
		issues = append(issues, Issue{SeverityWarning, "storage.db.mode", "append mode keeps prior rows; reruns duplicate data"})
	default:
		issues = append(issues, Issue{SeverityError, "storage.db.mode", fmt.Sprintf("unknown mode %q; want overwrite or append", db.Mode)})
	}

	if kind == "synapse" {
		if strings.TrimSpace(s.Staging.URL) == "" {
			issues = append(issues, Issue{SeverityError, "storage.staging.url", "synapse requires a staging blob url"})
		}
		switch s.Staging.Identity {
		case "", "storage_account_key", "managed_identity":
		default:
			issues = append(issues, Issue{SeverityError, "storage.staging.identity", fmt.Sprintf("unknown identity %q", s.Staging.Identity)})
		}
	} else if s.Staging.URL != "" {
		issues = append(issues, Issue{SeverityWarning, "storage.staging", fmt.Sprintf("staging is only used by synapse; ignored for %s", kind)})
	}

	return issues
}

// hasLiteralPassword reports whether dsn embeds a password in URL userinfo
// or as a key=value pair, other than an environment placeholder.
func hasLiteralPassword(dsn string) bool {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if pw, ok := u.User.Password(); ok && pw != "" && !strings.HasPrefix(pw, "${") {
			return true
		}
		if pw := u.Query().Get("password"); pw != "" && !strings.HasPrefix(pw, "${") {
			return true
		}
	}
	return passwordInDSN.MatchString(dsn)
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.batch_size", "batch_size must not be negative"})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.channel_buffer", "channel_buffer must not be negative"})
	}
	if r.CacheBlocks < 0 || r.CacheBlockSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.cache", "cache sizes must not be negative"})
	}
	if r.BatchSize > 1_000_000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; very large batches hold that many rows in memory per stage", r.BatchSize),
		})
	}

	return issues
}
