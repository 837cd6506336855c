//go:build !(darwin || linux)

package visibility

import (
	"context"
	"os"
	"os/signal"
)

// Watch maps interrupts onto Unload until ctx is done. Job control signals
// do not exist on this platform.
func Watch(ctx context.Context, h Handler) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				h.Handle(Unload)
			}
		}
	}()
}
