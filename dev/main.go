package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	devenv "vtaccess/dev/env"
)

func reset() error {
	dir, err := devenv.StateDir()
	if err != nil {
		return err
	}
	err = os.RemoveAll(dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "delete dev/.state before setting it up again")
	flag.Parse()
	ctx := context.Background()

	// dev/.state lives next to go.mod
	_, err := devenv.GetWorkspaceRoot()
	if err != nil {
		slog.Error("run the dev setup from inside the vtaccess module", "err", err)
		os.Exit(1)
	}

	if *recreate {
		err = reset()
		if err != nil {
			slog.Error("failed to remove dev state", "err", err)
			os.Exit(1)
		}
	}

	for _, step := range []func() error{
		func() error { return CreateScheduleDB(ctx) },
		WritePortalTemplate,
	} {
		err = step()
		if err != nil {
			slog.Error("failed to set up dev environment", "err", err)
			os.Exit(1)
		}
	}
	slog.Info("dev environment ready")
}
