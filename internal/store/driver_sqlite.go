package store

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func init() {
	registerDriver("sqlite3", driverSpec{
		// Pragmas in the DSN apply to every pooled connection. Write
		// transactions take the lock up front so concurrent writers wait on
		// busy_timeout instead of failing on upgrade.
		dsn: func(path string) string {
			return "file:" + path +
				"?_pragma=busy_timeout(5000)" +
				"&_pragma=journal_mode(wal)" +
				"&_pragma=synchronous(normal)" +
				"&_txlock=immediate"
		},
	})
}
