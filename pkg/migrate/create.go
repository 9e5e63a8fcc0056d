package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

	// now is swapped in tests to pin the version prefix.
	now = func() time.Time { return time.Now().UTC() }
)

const versionLayout = "20060102150405"

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql. Names of the form
// create_<table> get a CREATE/DROP TABLE skeleton; anything else gets empty
// Up/Down sections.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", now().Format(versionLayout), safe))
	if _, err := os.Stat(fullpath); err == nil {
		return "", fmt.Errorf("migration already exists: %s", fullpath)
	}

	if err := os.WriteFile(fullpath, []byte(migrationBody(safe)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	return safe, nil
}

func migrationBody(name string) string {
	if table, ok := strings.CutPrefix(name, "create_"); ok && table != "" {
		return fmt.Sprintf(`-- +goose Up
CREATE TABLE IF NOT EXISTS %[1]s (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- +goose Down
DROP TABLE IF EXISTS %[1]s;
`, table)
	}
	return fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`, name)
}
