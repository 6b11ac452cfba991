package feature

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/c-basalt/yumi-feed/internal/event"
)

// Func derives a dedup fingerprint from one event's payload. Returning an
// error makes the extractor fall back to the default full-payload
// fingerprint; it never surfaces to callers.
type Func func(ev event.Event) (string, error)

var errMissingField = errors.New("missing or ill-typed field")

// Extractor maps an Event to its (command type, fingerprint) dedup key.
//
// Per-command overrides produce small fingerprints for high-volume types
// with predictable duplicate payloads. Unknown command types and any
// override failure degrade to stringifying the full payload.
type Extractor struct {
	overrides map[string]Func
}

// NewExtractor creates an extractor with the built-in overrides.
func NewExtractor() *Extractor {
	return &Extractor{
		overrides: map[string]Func{
			"DANMU_MSG":          danmuFingerprint,
			"SEND_GIFT":          giftFingerprint,
			"SUPER_CHAT_MESSAGE": superChatFingerprint,
		},
	}
}

// Register adds or replaces the override for a command type. It exists so
// callers can tune dedup for room-specific event types without forking the
// extractor.
func (e *Extractor) Register(cmd string, fn Func) {
	e.overrides[cmd] = fn
}

// Extract returns the dedup key for an event.
func (e *Extractor) Extract(ev event.Event) (cmd, fingerprint string) {
	if fn, ok := e.overrides[ev.Cmd]; ok {
		if fp, err := fn(ev); err == nil {
			return ev.Cmd, fp
		}
	}
	return ev.Cmd, defaultFingerprint(ev)
}

// defaultFingerprint stringifies the whole payload.
func defaultFingerprint(ev event.Event) string {
	if len(ev.Raw) > 0 {
		return string(ev.Raw)
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Sprintf("%v", ev.Data)
	}
	return string(data)
}

// danmuFingerprint keys chat broadcasts on the sender-side dedup token,
// send time, and message text (info[9], info[0][4], info[1]).
func danmuFingerprint(ev event.Event) (string, error) {
	info, ok := ev.Data["info"].([]any)
	if !ok || len(info) < 10 {
		return "", errMissingField
	}
	meta, ok := info[0].([]any)
	if !ok || len(meta) < 5 {
		return "", errMissingField
	}
	return joinParts(info[9], meta[4], info[1]), nil
}

// giftFingerprint keys gift notifications on the transaction id and
// server timestamp.
func giftFingerprint(ev event.Event) (string, error) {
	data, ok := ev.Data["data"].(map[string]any)
	if !ok {
		return "", errMissingField
	}
	tid, ok1 := data["tid"]
	ts, ok2 := data["timestamp"]
	if !ok1 || !ok2 {
		return "", errMissingField
	}
	return joinParts(tid, ts), nil
}

// superChatFingerprint keys paid highlighted messages on message id,
// sender uid, price, and text.
func superChatFingerprint(ev event.Event) (string, error) {
	data, ok := ev.Data["data"].(map[string]any)
	if !ok {
		return "", errMissingField
	}
	id, ok1 := data["id"]
	uid, ok2 := data["uid"]
	price, ok3 := data["price"]
	msg, ok4 := data["message"]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return "", errMissingField
	}
	return joinParts(id, uid, price, msg), nil
}

// joinParts renders fingerprint components into one stable string.
func joinParts(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case string:
			strs[i] = v
		case float64:
			// JSON numbers decode as float64; render integers without
			// a fractional part so fingerprints stay stable.
			if v == float64(int64(v)) {
				strs[i] = fmt.Sprintf("%d", int64(v))
			} else {
				strs[i] = fmt.Sprintf("%v", v)
			}
		default:
			data, err := json.Marshal(p)
			if err != nil {
				strs[i] = fmt.Sprintf("%v", p)
			} else {
				strs[i] = string(data)
			}
		}
	}
	return strings.Join(strs, "|")
}
