package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where migrations live in the source tree; create writes here.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source locates a migration set. The zero value is invalid.
type Source struct {
	fsys    fs.FS
	dir     string
	builtin bool
}

// Embedded is the migration set compiled into the binary, so services can
// migrate without the source tree on disk.
func Embedded() Source {
	return Source{fsys: embedded, dir: "migrations", builtin: true}
}

// FromDir reads migrations from dir on disk.
func FromDir(dir string) Source {
	return Source{fsys: os.DirFS(dir), dir: dir}
}

// Files exposes the migration set for validation.
func (s Source) Files() (fs.FS, error) {
	if s.fsys == nil {
		return nil, fmt.Errorf("migration source is required")
	}
	if s.builtin {
		return fs.Sub(embedded, s.dir)
	}
	return s.fsys, nil
}

func (s Source) String() string {
	if s.builtin {
		return "embedded"
	}
	return s.dir
}

// prepare points goose at the source; the goose dialect is always postgres.
func (s Source) prepare() (string, error) {
	if s.fsys == nil {
		return "", fmt.Errorf("migration source is required")
	}
	if s.builtin {
		goose.SetBaseFS(embedded)
	} else {
		goose.SetBaseFS(nil)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	return s.dir, nil
}

// Run executes a goose command such as up, down or status.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	dir, err := src.prepare()
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// ToVersion moves the schema up or down until it sits at targetVersion.
func ToVersion(ctx context.Context, db *sql.DB, src Source, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	dir, err := src.prepare()
	if err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current < target:
		err = goose.UpToContext(ctx, db, dir, target)
	case current > target:
		err = goose.DownToContext(ctx, db, dir, target)
	}
	if err != nil {
		return fmt.Errorf("goose %d -> %d: %w", current, target, err)
	}
	return nil
}
