// Package merge fans in live events from multiple room connections,
// removes duplicates within a sliding time window, and serves the
// survivors one at a time.
//
// Rooms frequently deliver the same broadcast on more than one
// connection (multiple accounts watching one room, or one account in
// overlapping rooms); the dedup window keyed on per-command fingerprints
// collapses those to a single delivery within the retention window.
package merge
