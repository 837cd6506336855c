package timing

import (
	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/wire"
)

// Inputs

// cmdInput is a protocol command stamped with the wall clock at the moment
// it entered the authority's mailbox.
type cmdInput struct {
	actor.InputBase
	Cmd   wire.Command
	NowMs int64
}

// evTick is produced by the runtime ticker.
type evTick struct {
	actor.InputBase
	NowMs int64
}

// Effects

// effEmit publishes an event to the authority's consumer.
type effEmit struct {
	actor.EffectBase
	Event wire.Event
}

type effStartTicker struct {
	actor.EffectBase
}

type effStopTicker struct {
	actor.EffectBase
}
