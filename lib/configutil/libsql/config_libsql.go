package configlibsql

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	devenv "vtaccess/dev/env"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct picks a local sqlite file or a remote libsql database. URL
// wins when both are set.
type Struct struct {
	File string `json:"file"`
	// libsql://<db>.turso.io?authToken=... or http(s)://
	URL string `json:"url" validate:"omitempty,url"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.URL != "" {
		return sql.Open("libsql", config.URL)
	}
	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	dbpath, statErr := devenv.ResolvePath(config.File)
	if statErr != nil {
		return nil, statErr
	}

	_, statErr = os.Stat(dbpath)
	isNewDb := os.IsNotExist(statErr)
	if isNewDb {
		err := os.MkdirAll(filepath.Dir(dbpath), 0755)
		if err != nil {
			return nil, err
		}
		f, err := os.Create(dbpath)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// sqlite takes one writer at a time
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
