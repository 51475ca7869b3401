package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

var (
	sqlFileRe     = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	createTypeRe  = regexp.MustCompile(`(?i)CREATE\s+TYPE\s+(\w+)\s+AS\s+ENUM`)
	createTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(\w+)`)
)

// ValidateDir checks the migrations on disk in dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateFS checks every .sql file under root and reports all problems at
// once: filename format, unique versions, goose Up and Down sections,
// balanced StatementBegin/End markers, idempotent CREATE TABLE and enum
// types guarded by a pg_type lookup.
func ValidateFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var errs error
	seen := map[string]string{}
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

		path := name
		if root != "." && root != "" {
			path = root + "/" + name
		}
		body, err := fs.ReadFile(fsys, path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read file %q: %w", path, err))
			continue
		}
		errs = multierr.Append(errs, lintMigration(name, string(body)))
	}
	return errs
}

func lintMigration(name, txt string) error {
	var errs error
	upAt := strings.Index(txt, "-- +goose Up")
	downAt := strings.Index(txt, "-- +goose Down")
	switch {
	case upAt < 0:
		errs = multierr.Append(errs, fmt.Errorf("migration %q missing \"-- +goose Up\"", name))
	case downAt < 0:
		errs = multierr.Append(errs, fmt.Errorf("migration %q missing \"-- +goose Down\"", name))
	case downAt < upAt:
		errs = multierr.Append(errs, fmt.Errorf("migration %q has Down before Up", name))
	}

	if begins, ends := strings.Count(txt, "-- +goose StatementBegin"), strings.Count(txt, "-- +goose StatementEnd"); begins != ends {
		errs = multierr.Append(errs, fmt.Errorf("migration %q has %d StatementBegin and %d StatementEnd markers", name, begins, ends))
	}

	for _, m := range createTableRe.FindAllStringSubmatch(txt, -1) {
		if !strings.EqualFold(m[1], "IF") {
			errs = multierr.Append(errs, fmt.Errorf("migration %q creates table %s without IF NOT EXISTS", name, m[1]))
		}
	}
	for _, m := range createTypeRe.FindAllStringSubmatch(txt, -1) {
		guard := fmt.Sprintf("typname = '%s'", m[1])
		if !strings.Contains(txt, guard) {
			errs = multierr.Append(errs, fmt.Errorf("migration %q creates enum %s without a pg_type guard", name, m[1]))
		}
	}
	return errs
}
