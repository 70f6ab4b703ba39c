package synapse

import (
	"fmt"
	"strings"

	msddl "taxietl/internal/storage/mssql/ddl"
)

// Staging identities accepted for the COPY INTO credential.
const (
	IdentityAccountKey      = "storage_account_key"
	IdentityManagedIdentity = "managed_identity"
)

// Credential is how the warehouse authenticates against the staging account.
type Credential struct {
	Identity string
	Secret   string
}

// clause renders the CREDENTIAL option.
func (c Credential) clause() (string, error) {
	switch c.Identity {
	case "", IdentityAccountKey:
		if c.Secret == "" {
			return "", fmt.Errorf("synapse: identity %s requires a staging account key", IdentityAccountKey)
		}
		return fmt.Sprintf("CREDENTIAL = (IDENTITY = 'Storage Account Key', SECRET = %s)", literal(c.Secret)), nil
	case IdentityManagedIdentity:
		return "CREDENTIAL = (IDENTITY = 'Managed Identity')", nil
	default:
		return "", fmt.Errorf("synapse: unknown staging identity %q", c.Identity)
	}
}

// CopyIntoSQL renders a COPY INTO statement loading every gzip CSV file
// under source (an https folder URL) into table.
//
//	COPY INTO [dbo].[t] ([a], [b])
//	FROM 'https://acct.blob.core.windows.net/c/prefix/'
//	WITH (
//	  FILE_TYPE = 'CSV',
//	  ...
//	)
func CopyIntoSQL(table string, columns []string, source string, cred Credential) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("synapse: table must not be empty")
	}
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("synapse: source must not be empty")
	}
	credClause, err := cred.clause()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("COPY INTO ")
	sb.WriteString(msddl.QuoteFQN(table))
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = msddl.QuoteIdent(c)
		}
		sb.WriteString(" (")
		sb.WriteString(strings.Join(quoted, ", "))
		sb.WriteString(")")
	}
	sb.WriteString("\nFROM ")
	sb.WriteString(literal(source))
	sb.WriteString("\nWITH (\n")
	opts := []string{
		"FILE_TYPE = 'CSV'",
		"COMPRESSION = 'GZIP'",
		`FIELDQUOTE = '"'`,
		"FIELDTERMINATOR = ','",
		"ROWTERMINATOR = '0x0A'",
		"DATEFORMAT = 'ymd'",
		credClause,
	}
	sb.WriteString("  ")
	sb.WriteString(strings.Join(opts, ",\n  "))
	sb.WriteString("\n)")
	return sb.String(), nil
}

// literal quotes s as a T-SQL string literal.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
