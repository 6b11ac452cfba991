// Package feature derives dedup fingerprints from live events.
//
// A fingerprint is a narrower equality key than the full payload: two
// deliveries of the same chat message differ in server-added metadata but
// share sender, send time, and text. Command types without an override
// fall back to stringifying the whole payload.
package feature
