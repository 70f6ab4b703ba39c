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

func validPipeline() Pipeline {
	return Pipeline{
		Job:    "yellow_2025_01",
		Source: Source{Kind: "file", File: SourceFile{Path: "yellow_tripdata_2025-01.parquet"}},
		Parser: Parser{Kind: "parquet"},
		Transform: []Transform{
			{Kind: "normalize", Options: Options{"preset": "yellow_tripdata"}},
		},
		Storage: Storage{
			Kind: "sqlite",
			DB:   DBConfig{DSN: "file:taxi.db", Table: "yellow_tripdata"},
		},
		Runtime: RuntimeConfig{BatchSize: 1000, ChannelBuffer: 4},
	}
}

/*
TestValidatePipeline_ValidMinimal verifies that a well-formed pipeline produces
no issues at all.
*/
func TestValidatePipeline_ValidMinimal(t *testing.T) {
	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("ValidatePipeline() = %+v, want no issues", issues)
	}
}

/*
TestValidatePipeline_MissingJob verifies that an empty job is an error.
*/
func TestValidatePipeline_MissingJob(t *testing.T) {
	p := validPipeline()
	p.Job = " "
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "job", "must not be empty") {
		t.Fatalf("expected job error; got %+v", issues)
	}
	if !HasErrors(issues) {
		t.Fatal("HasErrors = false, want true")
	}
}

func TestValidatePipeline_Sources(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		sev  IssueSeverity
		path string
		msg  string
	}{
		{"empty kind", Source{}, SeverityError, "source.kind", "must not be empty"},
		{"unknown kind", Source{Kind: "ftp"}, SeverityError, "source.kind", "unknown source kind"},
		{"file without path", Source{Kind: "file"}, SeverityError, "source.file.path", "non-empty path"},
		{"azblob without address", Source{Kind: "azblob"}, SeverityError, "source.azblob", "requires url"},
		{"azblob without path", Source{Kind: "azblob", AzBlob: SourceAzBlob{Account: "a", Container: "c"}}, SeverityError, "source.azblob.path", "blob path"},
		{"azblob sas", Source{Kind: "azblob", AzBlob: SourceAzBlob{URL: "https://a.blob.core.windows.net/c/x.parquet?sv=1&sig=abc"}}, SeverityError, "source.azblob.url", "SAS"},
		{"s3 without bucket", Source{Kind: "s3", S3: SourceBucket{Key: "k"}}, SeverityError, "source.s3.bucket", "bucket"},
		{"gcs without key", Source{Kind: "gcs", GCS: SourceBucket{Bucket: "b"}}, SeverityError, "source.gcs.key", "object key"},
		{"bad month", Source{Kind: "file", Partition: &Partition{Dataset: "yellow", Year: 2025, Month: 13}}, SeverityError, "source.partition.month", "1..12"},
		{"http without url", Source{Kind: "http"}, SeverityError, "source.http.url", "requires a url"},
		{"http relative url", Source{Kind: "http", HTTP: SourceHTTP{URL: "trip-data/x.parquet"}}, SeverityError, "source.http.url", "absolute"},
		{"http plain", Source{Kind: "http", HTTP: SourceHTTP{URL: "http://example.com/x.parquet"}}, SeverityWarning, "source.http.url", "prefer https"},
		{"url and partition", Source{Kind: "azblob", AzBlob: SourceAzBlob{URL: "wasbs://c@a.blob.core.windows.net/x"}, Partition: &Partition{Dataset: "yellow", Year: 2025, Month: 1}}, SeverityWarning, "source.partition", "ignored"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPipeline()
			p.Source = tt.src
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("want %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

// TestValidatePipeline_PartitionReplacesPath checks that a partition satisfies
// the path requirement of bucket and blob sources.
func TestValidatePipeline_PartitionReplacesPath(t *testing.T) {
	p := validPipeline()
	p.Source = Source{
		Kind:      "azblob",
		AzBlob:    SourceAzBlob{Account: "nyctaxistore", Container: "nyc-taxi-raw"},
		Partition: &Partition{Dataset: "yellow", Year: 2025, Month: 1, Ext: "parquet"},
	}
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("issues = %+v, want none", issues)
	}
}

func TestValidatePipeline_ParserAndTransforms(t *testing.T) {
	p := validPipeline()
	p.Parser.Kind = "csv"
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "parser.kind", "only parquet") {
		t.Fatalf("expected parser error; got %+v", issues)
	}

	p = validPipeline()
	p.Transform = nil
	if !hasIssue(t, ValidatePipeline(p), SeverityWarning, "transform", "preset will be used") {
		t.Fatal("expected warning for empty transform chain")
	}

	p = validPipeline()
	p.Transform = append(p.Transform, Transform{Kind: "normalize", Options: Options{}})
	if !hasIssue(t, ValidatePipeline(p), SeverityError, "transform[1]", "once") {
		t.Fatal("expected error for a second normalize step")
	}

	p = validPipeline()
	p.Transform[0].Options = Options{
		"preset":   "green",
		"cast_int": "vendor_id",
		"rename":   []any{"x"},
		"fill":     map[string]any{"passenger_count": "zero"},
	}
	issues = ValidatePipeline(p)
	for _, path := range []string{
		"transform[0].options.preset",
		"transform[0].options.cast_int",
		"transform[0].options.rename",
		"transform[0].options.fill.passenger_count",
	} {
		if !hasIssue(t, issues, SeverityError, path, "") {
			t.Errorf("missing error at %s; got %+v", path, issues)
		}
	}

	p = validPipeline()
	p.Transform[0].Kind = "dedup"
	if !hasIssue(t, ValidatePipeline(p), SeverityError, "transform[0].kind", "only normalize") {
		t.Fatal("expected error for unknown transform")
	}
}

func TestValidatePipeline_Storage(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Storage)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"empty kind", func(s *Storage) { s.Kind = "" }, SeverityError, "storage.kind", "must not be empty"},
		{"unknown kind", func(s *Storage) { s.Kind = "mysql" }, SeverityError, "storage.kind", "unknown storage kind"},
		{"no dsn", func(s *Storage) { s.DB.DSN = "" }, SeverityError, "storage.db.dsn", "must not be empty"},
		{"no table", func(s *Storage) { s.DB.Table = "" }, SeverityError, "storage.db.table", "must not be empty"},
		{"append", func(s *Storage) { s.DB.Mode = "append" }, SeverityWarning, "storage.db.mode", "duplicate"},
		{"bad mode", func(s *Storage) { s.DB.Mode = "merge" }, SeverityError, "storage.db.mode", "unknown mode"},
		{"url password", func(s *Storage) {
			s.Kind = "postgres"
			s.DB.DSN = "postgres://etl:hunter2@db:5432/taxi"
		}, SeverityError, "storage.db.dsn", "literal password"},
		{"ado password", func(s *Storage) {
			s.Kind = "mssql"
			s.DB.DSN = "server=wh;database=nyctaxipool;password=hunter2"
		}, SeverityError, "storage.db.dsn", "literal password"},
		{"synapse without staging", func(s *Storage) {
			s.Kind = "synapse"
			s.DB.DSN = "sqlserver://wh?database=nyctaxipool"
		}, SeverityError, "storage.staging.url", "staging blob url"},
		{"synapse bad identity", func(s *Storage) {
			s.Kind = "synapse"
			s.DB.DSN = "sqlserver://wh?database=nyctaxipool"
			s.Staging = Staging{URL: "https://a.blob.core.windows.net/t", Identity: "sas"}
		}, SeverityError, "storage.staging.identity", "unknown identity"},
		{"staging ignored", func(s *Storage) { s.Staging.URL = "https://a.blob.core.windows.net/t" }, SeverityWarning, "storage.staging", "only used by synapse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPipeline()
			tt.mutate(&p.Storage)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("want %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

// TestValidatePipeline_PlaceholderPasswordAllowed verifies ${VAR} passwords
// are not reported as literals.
func TestValidatePipeline_PlaceholderPasswordAllowed(t *testing.T) {
	for _, dsn := range []string{
		"server=wh;database=nyctaxipool;password=${TAXIETL_WAREHOUSE_PASSWORD}",
		"sqlserver://wh?database=nyctaxipool",
		"postgres://etl@db:5432/taxi?sslmode=disable",
	} {
		if hasLiteralPassword(dsn) {
			t.Errorf("hasLiteralPassword(%q) = true, want false", dsn)
		}
	}
}

func TestValidatePipeline_Runtime(t *testing.T) {
	p := validPipeline()
	p.Runtime = RuntimeConfig{BatchSize: -1, ChannelBuffer: -1, CacheBlocks: -1}
	issues := ValidatePipeline(p)
	for _, path := range []string{"runtime.batch_size", "runtime.channel_buffer", "runtime.cache"} {
		if !hasIssue(t, issues, SeverityError, path, "negative") {
			t.Errorf("missing error at %s; got %+v", path, issues)
		}
	}

	p.Runtime = RuntimeConfig{BatchSize: 2_000_000}
	if !hasIssue(t, ValidatePipeline(p), SeverityWarning, "runtime.batch_size", "memory") {
		t.Fatal("expected warning for huge batch")
	}
}

func TestIssue_Error(t *testing.T) {
	got := Issue{Severity: SeverityWarning, Path: "storage.db.mode", Message: "m"}.Error()
	if got != "warning at storage.db.mode: m" {
		t.Fatalf("Error() = %q", got)
	}
}
