package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	devenv "vtaccess/dev/env"
	configlibsql "vtaccess/lib/configutil/libsql"
	"vtaccess/lib/schedulestore"
)

const scheduleDB = "<dev_state>/schedules.db"

const portalTemplate = `{
	// copy to config.json5 to run the tests that log into the real portal
	"username": "",
	"password": "",
	"term": ""
}
`

// CreateScheduleDB creates the local schedule database the cli can be
// pointed at with {"store": {"file": "<dev_state>/schedules.db"}}.
func CreateScheduleDB(ctx context.Context) error {
	path, err := devenv.ResolvePath(scheduleDB)
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		slog.Info("schedule database exists", "path", path)
		return nil
	}

	db, err := configlibsql.Struct{File: scheduleDB}.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()
	err = schedulestore.NewStore(db).Init(ctx)
	if err != nil {
		return err
	}
	slog.Info("created schedule database", "path", path)
	return nil
}

// WritePortalTemplate leaves an example next to where the live portal
// tests look for their config. The config itself is never written.
func WritePortalTemplate() error {
	dir, err := devenv.StateDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(dir, devenv.PortalTestConfigPath)
	examplePath := filepath.Join(filepath.Dir(configPath), "config.example.json5")

	err = os.MkdirAll(filepath.Dir(configPath), 0700)
	if err != nil {
		return err
	}
	err = os.WriteFile(examplePath, []byte(portalTemplate), 0600)
	if err != nil {
		return err
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		slog.Info("live portal tests are skipped until their config exists", "path", configPath, "example", examplePath)
	}
	return nil
}
