// Package migration discovers, names and writes migration files in a
// migrations directory.
package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Migration is one up script and, when present, its matching down script.
type Migration struct {
	// ID orders migrations; it is the file name or, for directory layouts, the directory name.
	ID       string
	UpPath   string
	DownPath string
}

// History is the ordered content of a migrations directory
type History struct {
	Dir        string
	Migrations []Migration
	// HasDown is set when any down script exists in the directory
	HasDown bool
	// Skipped lists entries that are not migrations
	Skipped []string
}

// Last returns the most recent migration, or nil for an empty history
func (h *History) Last() *Migration {
	if len(h.Migrations) == 0 {
		return nil
	}
	return &h.Migrations[len(h.Migrations)-1]
}

// Template returns the naming convention of the newest migration, falling
// back to the default convention when there is none or it cannot be read.
func (h *History) Template() Template {
	last := h.Last()
	if last == nil {
		return DefaultTemplate()
	}
	rel, err := filepath.Rel(h.Dir, last.UpPath)
	if err != nil {
		return DefaultTemplate()
	}
	tmpl, err := ParseTemplate(filepath.ToSlash(rel))
	if err != nil {
		return DefaultTemplate()
	}
	return tmpl
}

// downSuffixes maps an up marker to the marker of its down script
var downSuffixes = map[string]string{
	".up": ".down",
	".do": ".undo",
}

// Load reads dir and returns its migrations ordered by ID. A missing
// directory is an empty history.
func Load(dir string) (*History, error) {
	h := &History{Dir: dir}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	downs := make(map[string]string)
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			m, ok, err := loadDir(path, e.Name())
			if err != nil {
				return nil, err
			}
			if !ok {
				h.Skipped = append(h.Skipped, path)
				continue
			}
			if m.DownPath != "" {
				h.HasDown = true
			}
			h.Migrations = append(h.Migrations, m)
			continue
		}
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ".sql" {
			h.Skipped = append(h.Skipped, path)
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".sql")
		if strings.HasSuffix(stem, ".down") || strings.HasSuffix(stem, ".undo") {
			h.HasDown = true
			downs[stem] = path
			continue
		}
		h.Migrations = append(h.Migrations, Migration{ID: e.Name(), UpPath: path})
	}

	for i, m := range h.Migrations {
		if m.DownPath != "" {
			continue
		}
		stem := strings.TrimSuffix(m.ID, ".sql")
		for up, down := range downSuffixes {
			if base, ok := strings.CutSuffix(stem, up); ok {
				h.Migrations[i].DownPath = downs[base+down]
			}
		}
	}

	slices.SortFunc(h.Migrations, func(a, b Migration) int {
		return strings.Compare(a.ID, b.ID)
	})
	return h, nil
}

// loadDir recognizes the directory-per-migration layout: <id>/up.sql with an
// optional down.sql next to it.
func loadDir(path, name string) (Migration, bool, error) {
	up := filepath.Join(path, "up.sql")
	if _, err := os.Stat(up); err != nil {
		if os.IsNotExist(err) {
			return Migration{}, false, nil
		}
		return Migration{}, false, fmt.Errorf("failed to stat %s: %w", up, err)
	}
	m := Migration{ID: name, UpPath: up}
	down := filepath.Join(path, "down.sql")
	if _, err := os.Stat(down); err == nil {
		m.DownPath = down
	}
	return m, true, nil
}

// Write creates dir/rel with contents, creating parent directories as
// needed. Existing files are never overwritten.
func Write(dir, rel, contents string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create migration file: %w", err)
	}
	if _, err := f.WriteString(contents); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
