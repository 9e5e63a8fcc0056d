package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	markerUp             = "-- +goose Up"
	markerDown           = "-- +goose Down"
	markerStatementBegin = "-- +goose StatementBegin"
	markerStatementEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks every migration in dir and reports all problems at once:
// filename shape, version uniqueness, Up before Down, balanced statement
// blocks. An empty directory is valid.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	seen := map[string]string{} // version -> filename
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
		}
		seen[m[1]] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read file %q: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, validateBody(name, string(b)))
	}
	return errs
}

func validateBody(name, txt string) error {
	up := strings.Index(txt, markerUp)
	down := strings.Index(txt, markerDown)
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing %q", name, markerUp)
	case down < 0:
		return fmt.Errorf("migration %q missing %q", name, markerDown)
	case down < up:
		return fmt.Errorf("migration %q has Down before Up", name)
	}

	depth := 0
	for _, line := range strings.Split(txt, "\n") {
		switch strings.TrimSpace(line) {
		case markerStatementBegin:
			depth++
			if depth > 1 {
				return fmt.Errorf("migration %q nests StatementBegin", name)
			}
		case markerStatementEnd:
			depth--
			if depth < 0 {
				return fmt.Errorf("migration %q has StatementEnd without StatementBegin", name)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("migration %q has unterminated StatementBegin", name)
	}
	return nil
}
