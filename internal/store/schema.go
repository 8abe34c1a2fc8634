package store

import (
	"context"
	"embed"
	"strings"

	"github.com/pkg/errors"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the DDL for a driver.
func Schema(driver string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return "", errors.Errorf("no schema for driver %q", driver)
	}
	return string(b), nil
}

// Bootstrap creates the tables when missing. Only the admin tool and tests call it;
// the API expects an already provisioned database.
func Bootstrap(ctx context.Context, db *DB) error {
	ddl, err := Schema(db.Driver())
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.X.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "bootstrap: %s", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
