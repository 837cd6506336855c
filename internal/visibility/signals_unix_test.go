//go:build darwin || linux

package visibility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestWatchMapsProcessSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Signal, 4)
	Watch(ctx, HandlerFunc(func(sig Signal) { got <- sig }))

	for _, tc := range []struct {
		sig  unix.Signal
		want Signal
	}{
		{unix.SIGCONT, Visible},
		{unix.SIGHUP, Unload},
	} {
		require.NoError(t, unix.Kill(unix.Getpid(), tc.sig))
		select {
		case sig := <-got:
			require.Equal(t, tc.want, sig)
		case <-time.After(2 * time.Second):
			t.Fatalf("no visibility signal for %s", tc.sig)
		}
	}
}
