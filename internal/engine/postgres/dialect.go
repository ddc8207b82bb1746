package postgres

import (
	"fmt"
	"strings"
	"unicode"
)

// Dialect renders PostgreSQL DDL. Tables are heap tables; the storage
// location is accepted for interface parity and otherwise ignored.
type Dialect struct{}

func (Dialect) DropView(name string) string {
	return "DROP VIEW IF EXISTS " + name + " CASCADE"
}

func (Dialect) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + name
}

func (Dialect) CreateView(name, body string) string {
	return fmt.Sprintf("CREATE VIEW %s AS\n%s\n", name, body)
}

func (Dialect) CreateTableAs(name, body, location string) string {
	return fmt.Sprintf("CREATE TABLE %s AS\n%s\n", name, body)
}

// ValidateLocation accepts an empty location, s3:// or file:// URIs.
func (Dialect) ValidateLocation(location string) error {
	if location == "" {
		return nil
	}
	if !strings.HasPrefix(location, "s3://") && !strings.HasPrefix(location, "file://") {
		return fmt.Errorf("storage location %q must be an s3:// or file:// URI", location)
	}
	for _, r := range location {
		if r == '\'' || r == '"' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("storage location %q contains a forbidden character", location)
		}
	}
	return nil
}
