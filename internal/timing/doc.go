// Package timing implements the timing authority: the only component that
// knows how much time a workout session has accumulated.
//
// The authority runs as its own actor. It never counts ticks; elapsed time is
// always derived from an anchor timestamp and the total time spent paused:
//
//	elapsed = now - anchor - pausedAccumulated
//
// so a goroutine that was starved, or a process that was suspended, reports
// the correct value on its next event. Callers talk to it with wire.Command
// values and read wire.Event values from Events.
package timing
