package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Drivers accepted by OpenBackend.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// OpenBackend opens the backend named by driver. An empty path for sqlite
// resolves to DefaultDBPath; for badger it resolves to a "badger" directory
// next to it.
func OpenBackend(driver, path string, logger *slog.Logger) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		if path == "" {
			var err error
			if path, err = DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		return Open(path)
	case DriverBadger:
		if path == "" {
			def, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(filepath.Dir(def), "badger")
		}
		return OpenBadger(path, logger)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", driver)
	}
}
