package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/andybalholm/brotli"
	"github.com/goccy/go-json"

	"github.com/c-basalt/yumi-feed/internal/event"
)

// Frame header layout (16 bytes, big-endian):
//
//	packet_size:4  total frame length including header
//	header_size:2  payload offset, normally 16
//	protover:2     0 = plain JSON, 2 = control ack, 3 = brotli-wrapped frames
//	op:4           5 = data message carrying a JSON command
//	sequence:4     unused
const (
	HeaderSize = 16

	ProtoPlain  = 0
	ProtoAck    = 2
	ProtoBrotli = 3

	OpHeartbeat = 2
	OpData      = 5
	OpHandshake = 7
)

// maxNestingDepth bounds recursive decompression of brotli-wrapped frames.
// Real traffic nests exactly one level.
const maxNestingDepth = 8

// heartbeatFrame is the fixed heartbeat the server expects every 30s:
// a bare header (packet_size 31, protover 1, op 2, seq 1) followed by the
// literal payload "[object Object]".
var heartbeatFrame = []byte{
	0x00, 0x00, 0x00, 0x1f, 0x00, 0x10, 0x00, 0x01,
	0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01,
	'[', 'o', 'b', 'j', 'e', 'c', 't', ' ',
	'O', 'b', 'j', 'e', 'c', 't', ']',
}

// Decoder decodes binary wire frames into Events.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a frame decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Decode parses a buffer of one or more concatenated frames and returns the
// Events carried by data messages, in wire order. Brotli-wrapped frames are
// decompressed and their nested frames spliced into the output.
//
// Malformed or truncated input never produces an error: decoding stops at
// the first bad frame and returns whatever was parsed before it.
func (d *Decoder) Decode(buf []byte) []event.Event {
	return d.decode(buf, 0)
}

func (d *Decoder) decode(buf []byte, depth int) []event.Event {
	if depth > maxNestingDepth {
		d.logger.Warn("frame nesting too deep, dropping remainder", "depth", depth)
		return nil
	}

	var events []event.Event
	for len(buf) > 0 {
		if len(buf) < HeaderSize {
			d.logger.Debug("truncated frame header", "remaining", len(buf))
			break
		}

		packetSize := binary.BigEndian.Uint32(buf[0:4])
		headerSize := binary.BigEndian.Uint16(buf[4:6])
		protover := binary.BigEndian.Uint16(buf[6:8])
		op := binary.BigEndian.Uint32(buf[8:12])

		if packetSize < HeaderSize || int(packetSize) > len(buf) || int(headerSize) > int(packetSize) {
			d.logger.Warn("malformed frame, stopping decode",
				"packet_size", packetSize,
				"header_size", headerSize,
				"remaining", len(buf),
			)
			break
		}

		payload := buf[headerSize:packetSize]

		switch {
		case protover == ProtoBrotli:
			inner, err := decompress(payload)
			if err != nil {
				d.logger.Warn("failed to decompress frame", "error", err)
			} else {
				events = append(events, d.decode(inner, depth+1)...)
			}

		case op == OpData:
			ev, err := decodeCommand(payload)
			if err != nil {
				d.logger.Warn("failed to decode command payload", "error", err)
			} else {
				events = append(events, ev)
			}

		default:
			// Control acks (protover 2) and non-data ops are skipped.
		}

		buf = buf[packetSize:]
	}
	return events
}

// decodeCommand parses a data-message payload into an Event.
func decodeCommand(payload []byte) (event.Event, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return event.Event{}, fmt.Errorf("unmarshal command: %w", err)
	}

	cmd, _ := data["cmd"].(string)

	raw := make([]byte, len(payload))
	copy(raw, payload)

	return event.Event{Cmd: cmd, Data: data, Raw: raw}, nil
}

// decompress inflates a brotli-compressed payload.
func decompress(payload []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(payload)))
}

// handshakeBody is the first payload sent after the socket opens.
type handshakeBody struct {
	UID      int64  `json:"uid"`
	RoomID   int64  `json:"roomid"`
	Protover int    `json:"protover"`
	Platform string `json:"platform"`
	Type     int    `json:"type"`
	Key      string `json:"key"`
}

// EncodeHandshake builds the handshake frame: a 16-byte header
// (protover 1, op 7, seq 1) followed by the compact JSON auth body
// requesting protover 3 (brotli) data frames.
func EncodeHandshake(uid, roomID int64, token string) ([]byte, error) {
	body, err := json.Marshal(handshakeBody{
		UID:      uid,
		RoomID:   roomID,
		Protover: 3,
		Platform: "web",
		Type:     2,
		Key:      token,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal handshake body: %w", err)
	}

	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(HeaderSize+len(body)))
	binary.BigEndian.PutUint16(frame[4:6], HeaderSize)
	binary.BigEndian.PutUint16(frame[6:8], 1)
	binary.BigEndian.PutUint32(frame[8:12], OpHandshake)
	binary.BigEndian.PutUint32(frame[12:16], 1)
	copy(frame[HeaderSize:], body)

	return frame, nil
}

// HeartbeatFrame returns the fixed keepalive frame.
func HeartbeatFrame() []byte {
	frame := make([]byte, len(heartbeatFrame))
	copy(frame, heartbeatFrame)
	return frame
}
