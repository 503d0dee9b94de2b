// Package spatialite provides a geometry engine and coordinate transformer
// backed by an in-memory SpatiaLite database.
package spatialite

import (
	"database/sql"
	"os"
	"sync"

	"github.com/mattn/go-sqlite3"
)

const driverName = "geofix_spatialite"

var registerOnce sync.Once

// register installs the sqlite3 driver with SpatiaLite loaded. A configured
// library path is tried before the platform defaults.
func register(libraryPath string) {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			Extensions: libraryPaths(libraryPath),
		})
	})
}

func libraryPaths(configured string) []string {
	if configured != "" {
		return []string{configured}
	}
	if env := os.Getenv("SPATIALITE_LIBRARY_PATH"); env != "" {
		return []string{env}
	}

	return []string{
		// Alpine
		"/usr/lib/mod_spatialite.so",
		// Debian/Ubuntu
		"/usr/lib/x86_64-linux-gnu/mod_spatialite.so",
		"/usr/lib/aarch64-linux-gnu/mod_spatialite.so",
		// Homebrew
		"/usr/local/lib/mod_spatialite.dylib",
		"/opt/homebrew/lib/mod_spatialite.dylib",
		"mod_spatialite",
	}
}
