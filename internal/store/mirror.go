package store

import (
	"database/sql"
	"fmt"
	"strings"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenMirror connects to a remote libSQL replica (a Turso database URL) for
// the optional mirror [EXPANSION] Section 2 describes, grounded on
// db/sqlite.go's isURL branch: a libsql.Connector wrapped in gorm's sqlite
// dialector rather than its own dialect, since the wire protocol is
// SQLite-compatible.
func OpenMirror(url, authToken string) (*gorm.DB, error) {
	if !IsRemoteURL(url) {
		return nil, fmt.Errorf("store: %q is not a libsql/http(s) URL", url)
	}

	var conn *sql.DB
	if authToken != "" {
		c, err := libsql.NewConnector(url, libsql.WithAuthToken(authToken))
		if err != nil {
			return nil, fmt.Errorf("store: failed to create libsql connector: %w", err)
		}
		conn = sql.OpenDB(c)
	} else {
		c, err := libsql.NewConnector(url)
		if err != nil {
			return nil, fmt.Errorf("store: failed to create libsql connector: %w", err)
		}
		conn = sql.OpenDB(c)
	}

	dialector := sqlite.New(sqlite.Config{
		DriverName: "libsql",
		Conn:       conn,
		DSN:        url,
	})
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: failed to open mirror: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("store: failed to migrate mirror: %w", err)
	}
	return db, nil
}

// IsRemoteURL reports whether dsn names a remote libSQL/Turso replica
// rather than a local file path.
func IsRemoteURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "libsql://")
}
