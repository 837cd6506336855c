package actor

// InputBase is embedded by input types to implement Input.
type InputBase struct{}

func (InputBase) isActorInput() {}

// EffectBase is embedded by effect types to implement Effect.
type EffectBase struct{}

func (EffectBase) isActorEffect() {}
