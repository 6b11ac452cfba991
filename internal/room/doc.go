// Package room implements one room's connection to the live event
// stream.
//
// A Conn moves through idle → resolving → handshaking → connected →
// reconnecting, with closed terminal. Received frames are decoded,
// wrapped in Envelopes with a per-room increasing index, kept in a
// fixed-size ring buffer for replay, and offered non-blockingly to every
// listener queue. A listener that stops draining is evicted rather than
// allowed to back-pressure the wire read.
package room
