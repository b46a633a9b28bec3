// Package migrations embeds the goose SQL migrations for every database
// partition the application touches. The catalog, business and audit schemas
// deploy independently; each set keeps its own goose version table so two
// sets can share a physical database without clobbering each other.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed catalog/*.sql
var catalogFS embed.FS

//go:embed business/*.sql
var businessFS embed.FS

//go:embed audit/*.sql
var auditFS embed.FS

// Set is one independently versioned migration directory.
type Set struct {
	Name         string
	dir          string
	versionTable string
	fsys         fs.FS
}

// Sets returns every migration set in deploy order. The audit set must be
// applied to each partition that may receive audit rows, including the
// fallback partition when one is configured.
func Sets() []Set {
	return []Set{
		{Name: "catalog", dir: "catalog", versionTable: "goose_catalog_version", fsys: catalogFS},
		{Name: "business", dir: "business", versionTable: "goose_business_version", fsys: businessFS},
		{Name: "audit", dir: "audit", versionTable: "goose_audit_version", fsys: auditFS},
	}
}

// Lookup finds a set by name.
func Lookup(name string) (Set, error) {
	for _, set := range Sets() {
		if set.Name == name {
			return set, nil
		}
	}
	return Set{}, fmt.Errorf("migrations: unknown set %q", name)
}

// Up applies all pending migrations of the set against the given DSN using
// the pgx stdlib driver. Goose keeps package-level state, so calls must not
// overlap; the migrate command runs sets sequentially.
func Up(ctx context.Context, set Set, dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("migrations: open %s: %w", set.Name, err)
	}
	defer db.Close()

	goose.SetBaseFS(set.fsys)
	goose.SetTableName(set.versionTable)
	defer goose.SetBaseFS(nil)

	if err := goose.UpContext(ctx, db, set.dir); err != nil {
		return fmt.Errorf("migrations: up %s: %w", set.Name, err)
	}
	return nil
}
