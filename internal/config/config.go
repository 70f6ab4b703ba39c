// Package config defines the JSON pipeline model for the taxi load job.
//
// A pipeline file names the source object, the parser, the normalize step,
// the destination table and runtime knobs. Credentials never live in the file;
// see secrets.go.
//
// Example (trimmed):
//
//	{
//	  "job": "yellow_tripdata_2025_01",
//	  "source": {
//	    "kind": "azblob",
//	    "azblob": { "url": "wasbs://nyc-taxi-raw@acct.blob.core.windows.net/yellow/2025/01/yellow_tripdata_2025-01.parquet" }
//	  },
//	  "parser":    { "kind": "parquet" },
//	  "transform": [ { "kind": "normalize", "options": { "preset": "yellow_tripdata" } } ],
//	  "storage": {
//	    "kind": "synapse",
//	    "db": { "dsn": "sqlserver://${TAXIETL_WAREHOUSE_HOST}?database=nyctaxipool", "table": "dbo.yellow_tripdata" },
//	    "staging": { "url": "https://acct.blob.core.windows.net/synapse-temp/tempdir" }
//	  }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job"`

	Source    Source        `json:"source"`
	Parser    Parser        `json:"parser"`
	Transform []Transform   `json:"transform"`
	Storage   Storage       `json:"storage"`
	Runtime   RuntimeConfig `json:"runtime"`
}

// RuntimeConfig controls batching and channel buffer sizes between stages.
type RuntimeConfig struct {
	BatchSize     int `json:"batch_size"`
	ChannelBuffer int `json:"channel_buffer"`
	// CacheBlocks bounds the remote read cache (blocks of CacheBlockSize bytes).
	CacheBlocks    int `json:"cache_blocks"`
	CacheBlockSize int `json:"cache_block_size"`
}

// Source identifies the object to read. Exactly one kind-specific block is
// used, selected by Kind.
type Source struct {
	// Kind is one of "file", "azblob", "s3", "gcs", "http".
	Kind string `json:"kind"`

	File   SourceFile   `json:"file"`
	AzBlob SourceAzBlob `json:"azblob"`
	S3     SourceBucket `json:"s3"`
	GCS    SourceBucket `json:"gcs"`
	HTTP   SourceHTTP   `json:"http"`

	// Partition, when set, builds the object path from dataset/year/month
	// instead of a literal path.
	Partition *Partition `json:"partition,omitempty"`
}

// SourceFile is a local filesystem path.
type SourceFile struct {
	Path string `json:"path"`
}

// SourceHTTP is a public URL served with byte-range support. With a
// partition the URL is a base and the partition path is appended.
type SourceHTTP struct {
	URL string `json:"url"`
}

// SourceAzBlob addresses a blob either by URL (wasbs:// or https://) or by
// account/container/path.
type SourceAzBlob struct {
	URL       string `json:"url"`
	Account   string `json:"account"`
	Container string `json:"container"`
	Path      string `json:"path"`
	// Endpoint overrides https://<account>.blob.core.windows.net (emulators).
	Endpoint string `json:"endpoint"`
}

// SourceBucket addresses an object in an S3 or GCS bucket.
type SourceBucket struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Region string `json:"region"`
	// Endpoint overrides the service endpoint (S3-compatible stores, fakes).
	Endpoint string `json:"endpoint"`
}

// Partition describes a dataset/year/month object layout such as
// yellow/2025/01/yellow_tripdata_2025-01.parquet.
type Partition struct {
	Dataset string `json:"dataset"`
	Prefix  string `json:"prefix"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Ext     string `json:"ext"`
}

// Parser selects how the object is decoded. Only "parquet" exists.
type Parser struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options"`
}

// Transform is one step of the transform chain. Only "normalize" exists.
type Transform struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options"`
}

// Storage selects the warehouse sink.
type Storage struct {
	// Kind is one of "synapse", "mssql", "postgres", "sqlite".
	Kind string `json:"kind"`

	DB DBConfig `json:"db"`

	// Staging is the intermediate blob area used by "synapse".
	Staging Staging `json:"staging"`
}

// DBConfig configures the destination table.
type DBConfig struct {
	// DSN is the driver connection string. ${VAR} placeholders are expanded
	// from the environment; user/password are injected from secrets.
	DSN string `json:"dsn"`

	// Table is the destination table, optionally schema qualified.
	Table string `json:"table"`

	// Columns optionally pins the destination column order. When empty the
	// normalized schema's order is used.
	Columns []string `json:"columns"`

	// Mode is "overwrite" (default) or "append".
	Mode string `json:"mode"`

	// AutoCreateTable creates the table from the normalized schema if absent.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Staging points at the blob prefix a warehouse reads staged files from.
type Staging struct {
	// URL is https://<account>.blob.core.windows.net/<container>/<prefix> or
	// wasbs://<container>@<account>.blob.core.windows.net/<prefix>.
	URL string `json:"url"`
	// Identity is the COPY INTO credential: "storage_account_key" (default)
	// or "managed_identity".
	Identity string `json:"identity"`
	// Keep leaves staged files in place after the load.
	Keep bool `json:"keep"`
}

// Load reads and decodes a pipeline file.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}

// Normalize returns the first normalize transform's options, or an empty bag
// when none is configured.
func (p Pipeline) Normalize() Options {
	for _, t := range p.Transform {
		if t.Kind == "normalize" {
			return t.Options
		}
	}
	return Options{}
}

// Options is a small helper to fetch typed values from free-form JSON maps.
// It performs minimal coercion and returns the default when a key is absent
// or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, so both float64 and int are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringMap returns key as map[string]string. Non-string values are dropped.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if m, ok := o[key].(map[string]any); ok {
		for k, vv := range m {
			if s, ok := vv.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}

// Map returns key as a raw object, or nil.
func (o Options) Map(key string) map[string]any {
	if m, ok := o[key].(map[string]any); ok {
		return m
	}
	return nil
}

// StringSlice returns key as []string, or nil when absent or not an array.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// UnmarshalJSON makes a missing or null options object decode to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
