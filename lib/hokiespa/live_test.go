package hokiespa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	devenv "vtaccess/dev/env"
	"vtaccess/lib/cas"
	"vtaccess/lib/semester"

	"github.com/stretchr/testify/require"
)

// TestLivePortal logs into the real portal with the account in
// dev/.state/portal/config.json5 and is skipped without one.
func TestLivePortal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live portal test in short mode")
	}
	cfg, err := devenv.GetStateConfig[devenv.PortalTestConfig](devenv.PortalTestConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		t.Skip("no portal test config, run `go run ./dev` to create one")
	}
	require.NoError(t, err)
	term, err := semester.Parse(cfg.Term)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	session, err := cas.Open(ctx, cfg.Username, cfg.Password, cas.Options{
		TrustPath: filepath.Join(t.TempDir(), cas.DefaultTrustPath),
	})
	require.NoError(t, err)
	defer session.Close(ctx)

	client, err := NewClient(ctx, session, Options{})
	require.NoError(t, err)

	schedule, err := client.RetrieveSchedule(ctx, term)
	require.NoError(t, err)
	require.False(t, schedule.IsEmpty())
	for _, c := range schedule.AllCourses() {
		t.Log(c.String())
	}
}
