package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// SecretsPrefix is the environment prefix for every credential.
const SecretsPrefix = "TAXIETL"

// Secrets are the credentials a run needs. They come from the environment
// (optionally seeded from a .env file) and are never read from the pipeline
// file.
type Secrets struct {
	// StorageAccountKey authenticates source blob reads. Empty means use
	// DefaultAzureCredential.
	StorageAccountKey string `envconfig:"STORAGE_ACCOUNT_KEY"`
	// StagingAccountKey authenticates staging uploads and the COPY INTO
	// credential. Falls back to StorageAccountKey.
	StagingAccountKey string `envconfig:"STAGING_ACCOUNT_KEY"`

	WarehouseUser     string `envconfig:"WAREHOUSE_USER"`
	WarehousePassword string `envconfig:"WAREHOUSE_PASSWORD"`

	// Static S3 keys. Empty means the default AWS credential chain.
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	AWSSessionToken    string `envconfig:"AWS_SESSION_TOKEN"`

	// GCSCredentialsFile is a service account JSON path. Empty means
	// application default credentials.
	GCSCredentialsFile string `envconfig:"GCS_CREDENTIALS_FILE"`
}

// StagingKey returns the key used for the staging account.
func (s Secrets) StagingKey() string {
	if s.StagingAccountKey != "" {
		return s.StagingAccountKey
	}
	return s.StorageAccountKey
}

// String never prints secret values, only whether they are set.
func (s Secrets) String() string {
	set := func(v string) string {
		if v == "" {
			return "unset"
		}
		return "set"
	}
	return fmt.Sprintf("storage_key=%s staging_key=%s warehouse_user=%q warehouse_password=%s",
		set(s.StorageAccountKey), set(s.StagingAccountKey), s.WarehouseUser, set(s.WarehousePassword))
}

// LoadEnvFile seeds the environment from path without overriding variables
// already set. An empty path tries ./.env and ignores its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

// LoadSecrets reads TAXIETL_* variables.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := envconfig.Process(SecretsPrefix, &s); err != nil {
		return s, fmt.Errorf("config: secrets: %w", err)
	}
	return s, nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandPlaceholders replaces ${VAR} with the value of VAR. A reference to an
// unset variable is an error so that a run never dials a half-built DSN.
// Bare $VAR is left alone because passwords and ADO strings may contain '$'.
func ExpandPlaceholders(s string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return s, fmt.Errorf("config: unset environment variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ApplySecrets expands placeholders in the storage DSN and injects the
// warehouse user and password. URL-style DSNs get url.UserPassword userinfo;
// key=value DSNs get "user id" and "password" pairs appended.
func ApplySecrets(p *Pipeline, s Secrets) error {
	dsn, err := ExpandPlaceholders(p.Storage.DB.DSN)
	if err != nil {
		return err
	}
	if p.Storage.Kind != "sqlite" {
		dsn, err = InjectCredentials(dsn, s.WarehouseUser, s.WarehousePassword)
		if err != nil {
			return err
		}
	}
	p.Storage.DB.DSN = dsn

	for _, ref := range []*string{&p.Source.AzBlob.URL, &p.Source.AzBlob.Endpoint, &p.Source.S3.Endpoint, &p.Source.GCS.Endpoint, &p.Source.HTTP.URL, &p.Storage.Staging.URL} {
		v, err := ExpandPlaceholders(*ref)
		if err != nil {
			return err
		}
		*ref = v
	}
	return nil
}

// InjectCredentials adds user and password to dsn. Empty values leave the
// DSN's own user untouched.
func InjectCredentials(dsn, user, password string) (string, error) {
	if user == "" && password == "" {
		return dsn, nil
	}
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("config: parse dsn: %w", err)
		}
		if user == "" && u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil
	}
	parts := []string{strings.TrimRight(dsn, ";")}
	if user != "" {
		parts = append(parts, "user id="+quoteADO(user))
	}
	if password != "" {
		parts = append(parts, "password="+quoteADO(password))
	}
	return strings.Join(parts, ";"), nil
}

// quoteADO wraps v in double quotes, doubling inner quotes, when it would
// otherwise be split or trimmed by a key=value connection string parser.
func quoteADO(v string) string {
	if !strings.ContainsAny(v, ";\"'") && strings.TrimSpace(v) == v {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// splitADO splits a key=value connection string on semicolons outside
// double-quoted values.
func splitADO(dsn string) []string {
	var parts []string
	start, quoted := 0, false
	for i := 0; i < len(dsn); i++ {
		switch dsn[i] {
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				parts = append(parts, dsn[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, dsn[start:])
}

// RedactDSN hides passwords so a DSN can be logged.
func RedactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
		return "<unparseable dsn>"
	}
	kv := splitADO(dsn)
	for i, p := range kv {
		k, _, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "password", "pwd":
			kv[i] = k + "=xxxxx"
		}
	}
	return strings.Join(kv, ";")
}
