//go:build libsql

package store

import (
	_ "github.com/tursodatabase/go-libsql"
)

func init() {
	registerDriver("libsql", driverSpec{
		dsn: func(path string) string {
			return "file:" + path
		},
		pragmas: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		},
		// Pragmas only reach the connection they ran on.
		maxOpenConns: 1,
	})
}
