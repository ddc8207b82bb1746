package athena

import (
	"fmt"
	"strings"
	"unicode"
)

// Dialect renders Athena DDL. Marts land as Iceberg tables in PARQUET.
type Dialect struct{}

func (Dialect) DropView(name string) string {
	return "DROP VIEW IF EXISTS " + name
}

func (Dialect) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + name
}

func (Dialect) CreateView(name, body string) string {
	return fmt.Sprintf("CREATE VIEW %s AS\n%s\n", name, body)
}

func (Dialect) CreateTableAs(name, body, location string) string {
	if location == "" {
		return fmt.Sprintf("CREATE TABLE %s AS\n%s\n", name, body)
	}
	return fmt.Sprintf(`CREATE TABLE %s
WITH (
    table_type = 'ICEBERG',
    location = '%s/%s/',
    is_external = false,
    format = 'PARQUET'
) AS
%s
`, name, strings.TrimRight(location, "/"), name, body)
}

// ValidateLocation accepts s3:// URIs free of quotes and control characters.
func (Dialect) ValidateLocation(location string) error {
	if !strings.HasPrefix(location, "s3://") || len(location) == len("s3://") {
		return fmt.Errorf("storage location %q must be an s3:// URI", location)
	}
	for _, r := range location {
		if r == '\'' || r == '"' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("storage location %q contains a forbidden character", location)
		}
	}
	return nil
}
