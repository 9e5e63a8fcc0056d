package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/phoneshop-backend/pkg/db"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the schema migrations compiled into the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// Source picks the embedded set for the default directory and reads from
// disk otherwise.
func Source(dir string) fs.FS {
	if dir == "" || dir == DefaultDir {
		return Migrations()
	}
	return os.DirFS(dir)
}

// Dialect maps the db client driver name onto the goose dialect.
func Dialect(driver string) goose.Dialect {
	if driver == db.DriverSQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

func newProvider(sqlDB *sql.DB, dialect goose.Dialect, fsys fs.FS) (*goose.Provider, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("db is required")
	}
	if fsys == nil {
		return nil, fmt.Errorf("migrations source is required")
	}
	p, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Run executes up, down or status and writes a one line report per migration
// to out.
func Run(ctx context.Context, sqlDB *sql.DB, dialect goose.Dialect, fsys fs.FS, command string, out io.Writer) error {
	p, err := newProvider(sqlDB, dialect, fsys)
	if err != nil {
		return err
	}
	if out == nil {
		out = io.Discard
	}

	switch command {
	case "up":
		results, err := p.Up(ctx)
		for _, r := range results {
			reportResult(out, r)
		}
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case "down":
		result, err := p.Down(ctx)
		if result != nil {
			reportResult(out, result)
		}
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-24s %s\n", applied, s.Source.Path)
		}
	default:
		return fmt.Errorf("unsupported goose command %q", command)
	}
	return nil
}

func reportResult(out io.Writer, r *goose.MigrationResult) {
	if r == nil || r.Source == nil {
		return
	}
	status := "OK"
	if r.Error != nil {
		status = "FAILED"
	}
	fmt.Fprintf(out, "%-6s %-4s %s (%s)\n", status, r.Direction, r.Source.Path, r.Duration.Round(time.Millisecond))
}

// MigrateToVersion moves the schema up or down to targetVersion.
func MigrateToVersion(ctx context.Context, sqlDB *sql.DB, dialect goose.Dialect, fsys fs.FS, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	p, err := newProvider(sqlDB, dialect, fsys)
	if err != nil {
		return err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if _, err := p.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if _, err := p.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
