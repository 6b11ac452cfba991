// Package registry reconciles the set of live room connections against a
// desired room-id set, supervising one connection loop per room.
package registry
