package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/andybalholm/brotli"
)

// EncodeData builds a plain (protover 0) data frame around a JSON command
// payload. The live server is the only producer of data frames in
// production; this encoder exists for fake servers and replay tooling.
func EncodeData(payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(HeaderSize+len(payload)))
	binary.BigEndian.PutUint16(frame[4:6], HeaderSize)
	binary.BigEndian.PutUint16(frame[6:8], ProtoPlain)
	binary.BigEndian.PutUint32(frame[8:12], OpData)
	binary.BigEndian.PutUint32(frame[12:16], 0)
	copy(frame[HeaderSize:], payload)
	return frame
}

// CompressFrames wraps one or more already-encoded frames in a single
// brotli (protover 3) outer frame, the way the server batches data frames.
func CompressFrames(frames ...[]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	for _, f := range frames {
		if _, err := w.Write(f); err != nil {
			return nil, fmt.Errorf("compress frame: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close compressor: %w", err)
	}

	body := buf.Bytes()
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(HeaderSize+len(body)))
	binary.BigEndian.PutUint16(frame[4:6], HeaderSize)
	binary.BigEndian.PutUint16(frame[6:8], ProtoBrotli)
	binary.BigEndian.PutUint32(frame[8:12], OpData)
	binary.BigEndian.PutUint32(frame[12:16], 0)
	copy(frame[HeaderSize:], body)
	return frame, nil
}
