// Package storage opens the SQLite databases behind the settings and history
// stores.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/doeshing/notegen/internal/domain"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// Open creates the parent directory and opens path with WAL enabled.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}
	return db, nil
}
