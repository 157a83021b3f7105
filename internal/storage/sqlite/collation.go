package sqlite

import (
	"database/sql"
	"sync"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collationName is the SQL collation used for string ordering.
const collationName = "LOCALE"

var registered sync.Map // language tag -> driver name

// driverFor returns a sqlite3 driver name whose connections carry a LOCALE
// collation for tag. Drivers are registered once per tag.
func driverFor(tag language.Tag) string {
	name := "sqlite3_livequery_" + tag.String()
	if _, loaded := registered.LoadOrStore(tag.String(), name); loaded {
		return name
	}

	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			var mu sync.Mutex
			c := collate.New(tag)
			return conn.RegisterCollation(collationName, func(a, b string) int {
				mu.Lock()
				defer mu.Unlock()
				return c.CompareString(a, b)
			})
		},
	})
	return name
}
