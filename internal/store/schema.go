package store

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

//go:embed schema.sql
var schemaTemplate string

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateIdentifier guards every place a table or column name taken from
// config is interpolated into SQL, mirroring the teacher's validWindows
// allowlist in internal/db/postgres.go.
func validateIdentifier(name string) error {
	if !identifierRE.MatchString(name) {
		return fmt.Errorf("store: %q is not a safe SQL identifier", name)
	}
	return nil
}

// Bootstrap executes the idempotent schema DDL (spec component C8), table
// names substituted from config. This is the "schema bootstrap DDL" external
// collaborator named in spec.md §1 — the core (Store's CRUD methods) never
// calls this itself; main calls it once at root cold start.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, name := range []string{s.working, s.known, s.status} {
		if err := validateIdentifier(name); err != nil {
			return err
		}
	}

	replacer := strings.NewReplacer(
		"{{WORKING}}", s.working,
		"{{KNOWN}}", s.known,
		"{{STATUS}}", s.status,
		"{{CHAR_DIGITS}}", strconv.Itoa(s.charDigits),
		"{{DEC_PRECISION}}", strconv.Itoa(s.decPrecision),
		"{{DEC_SCALE}}", strconv.Itoa(s.decScale),
	)
	ddl := replacer.Replace(schemaTemplate)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("store: schema bootstrap: %w", err)
	}
	return nil
}
