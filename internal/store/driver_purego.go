//go:build nocgo

package store

import "github.com/glebarez/sqlite"
import "gorm.io/gorm"

// localDialector opens a file-backed (or :memory:) SQLite database with
// glebarez/sqlite, a pure-Go SQLite implementation, for daemon builds that
// need CGO_ENABLED=0 (cross-compiling elm-pair for a platform without a C
// toolchain available).
func localDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}
