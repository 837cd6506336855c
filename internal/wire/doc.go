// Package wire defines the message protocol spoken between the timer
// supervisor and the timing authority.
//
// Messages are a discriminated union keyed by `type`. Every encoded message
// also carries the protocol version `v`; decoders reject versions and types
// they do not know. Fields beyond the ones a type requires are additive, so a
// consumer that only understands the base shape can ignore them.
package wire
