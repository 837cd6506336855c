//go:build darwin || linux

package visibility

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/bhandras/workout/pkg/logger"
)

// Watch maps process signals onto h until ctx is done:
//
//	SIGTSTP                 -> Hidden, then the process stops itself
//	SIGCONT                 -> Visible
//	SIGINT, SIGTERM, SIGHUP -> Unload
//
// h runs on the watcher goroutine and must return before the process is
// stopped, so Hidden is recorded with the correct timestamp.
func Watch(ctx context.Context, h Handler) {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, unix.SIGTSTP, unix.SIGCONT, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				switch sig {
				case unix.SIGTSTP:
					h.Handle(Hidden)
					suspendSelf()
				case unix.SIGCONT:
					h.Handle(Visible)
				default:
					logger.Debugf("visibility: received %s", sig)
					h.Handle(Unload)
				}
			}
		}
	}()
}

// suspendSelf performs the stop that catching SIGTSTP suppressed. SIGSTOP
// cannot be caught, and SIGCONT on resume is delivered to the watcher.
func suspendSelf() {
	if err := unix.Kill(unix.Getpid(), unix.SIGSTOP); err != nil {
		logger.Warnf("visibility: failed to suspend: %v", err)
	}
}
