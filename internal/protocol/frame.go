package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// DefaultMaxFrameBytes bounds a single header or payload section. Frames
// claiming more are rejected before any allocation.
const DefaultMaxFrameBytes = 4096

// Frames are laid out as
//
//	[4-byte length][header JSON][4-byte length][payload bytes]
//
// with both lengths big-endian uint32. The payload bytes are a tagged JSON
// envelope, or the sealed form of one when the header says encrypted.

// WriteFrame writes one complete frame to w.
func WriteFrame(w io.Writer, h Header, payload []byte) error {
	headerBytes, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	buf := make([]byte, 0, 8+len(headerBytes)+len(payload))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(headerBytes)))
	buf = append(buf, headerBytes...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one complete frame from r, reassembling partial reads. The
// payload is returned raw; callers decrypt and decode it. maxSize bounds each
// length-prefixed section; pass 0 for DefaultMaxFrameBytes.
func ReadFrame(r io.Reader, maxSize int) (Header, []byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameBytes
	}

	headerBytes, err := readSection(r, maxSize)
	if err != nil {
		return Header{}, nil, err
	}
	var h Header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return Header{}, nil, &DecodeError{Reason: "malformed header", Err: err}
	}

	payload, err := readSection(r, maxSize)
	if err != nil {
		return Header{}, nil, err
	}
	return h, payload, nil
}

func readSection(r io.Reader, maxSize int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > uint32(maxSize) {
		return nil, &DecodeError{Reason: fmt.Sprintf("section length %d exceeds limit %d", n, maxSize)}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &DecodeError{Reason: "truncated section", Err: err}
	}
	return buf, nil
}

// DecodeDatagram parses a single UDP datagram holding one complete frame.
func DecodeDatagram(data []byte, maxSize int) (Header, []byte, error) {
	return ReadFrame(bytes.NewReader(data), maxSize)
}
