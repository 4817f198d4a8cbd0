package testutil

import (
	"database/sql"
	"strings"
	"testing"
	devenv "vtaccess/dev/env"

	_ "modernc.org/sqlite"
)

type DBParams struct {
	// if unspecified, the database is left empty
	Schema string
	// if unspecified, it will use `:memory:`
	Path string
}

// OpenDB opens a sqlite database for a test and closes it when the
// test ends. An in memory database lives on a single connection, a
// second one would see a different database.
func OpenDB(t testing.TB, params DBParams) *sql.DB {
	dbpath := ":memory:"
	if params.Path != "" && params.Path != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(params.Path)
		if err != nil {
			t.Fatal(err)
		}
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlite.Close()
	})

	if params.Schema != "" {
		_, err = sqlite.Exec(params.Schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatal(err)
		}
	}
	return sqlite
}
