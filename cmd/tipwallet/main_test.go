package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/tipwallet/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	noenv := func(string) string { return "" }
	wd := func() (string, error) { return t.TempDir(), nil }

	listenAddr := func(t *testing.T) string {
		port, err := testutil.RandomPort()
		require.NoError(t, err, "failed to get random port to start server")
		return fmt.Sprintf("localhost:%d", port)
	}

	t.Run("stop with signal", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		err := run(ctx, noenv, wd, []string{
			"--address", listenAddr(t),
			"--log-level", "debug",
			"--database", pg.DSN,
			"--secret-key", "secret",
		})

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("with redis", func(t *testing.T) {
		rc := testutil.StartRedisContainer(t)
		t.Cleanup(rc.Terminate)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		err := run(ctx, noenv, wd, []string{
			"--address", listenAddr(t),
			"--database", pg.DSN,
			"--secret-key", "secret",
			"--redis-addr", rc.Client.Options().Addr,
		})

		require.NoError(t, err)
	})

	t.Run("stop with srv error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		// Try to run without secret key. Must fail
		err := run(ctx, noenv, wd, []string{
			"--address", listenAddr(t),
			"--log-level", "debug",
			"--database", pg.DSN,
		})

		require.Error(t, err, "on incorrect stop should return error")
	})

	t.Run("unreachable redis", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		port, err := testutil.RandomPort()
		require.NoError(t, err)

		err = run(ctx, noenv, wd, []string{
			"--address", listenAddr(t),
			"--database", pg.DSN,
			"--secret-key", "secret",
			"--redis-addr", fmt.Sprintf("localhost:%d", port),
		})

		require.ErrorContains(t, err, "redis")
	})
}
