//go:build !nocgo

package store

import "gorm.io/driver/sqlite"
import "gorm.io/gorm"

// localDialector opens a file-backed (or :memory:) SQLite database with the
// cgo-based mattn/go-sqlite3 driver, matching db/sqlite.go's default. Build
// with -tags nocgo to link the pure-Go glebarez/sqlite driver instead, for
// CGO_ENABLED=0 static builds of the daemon.
func localDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}
