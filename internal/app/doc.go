// Package app holds the room use cases behind the realtime broker.
//
// A connection is authorized into a role, bound to its room session, and from
// then on every client event is routed to the poll engine, the question board
// or the reaction fan-out. Late joiners receive the current room state through
// the replay. Storage and publishing are reached through domain interfaces.
package app
