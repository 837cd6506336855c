package actor

// Replay feeds inputs through reducer one after another, without running any
// effects, and returns the final state with every effect emitted on the way.
// Reducer tests use it to drive a state machine through a scenario.
func Replay[S any](state S, reducer ReducerFunc[S], inputs ...Input) (S, []Effect) {
	var all []Effect
	for _, in := range inputs {
		var effects []Effect
		state, effects = reducer(state, in)
		all = append(all, effects...)
	}
	return state, all
}
