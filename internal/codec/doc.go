// Package codec implements the binary wire framing used by the live event
// stream.
//
// A frame is a 16-byte big-endian header followed by a payload. Data
// messages (op 5) carry one JSON command; protover 3 frames carry a
// brotli-compressed batch of nested frames. The decoder is tolerant by
// design: a malformed frame ends the current buffer instead of failing it.
package codec
