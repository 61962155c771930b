package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := Header{ClientID: "client-1", Encrypted: true}
	payload := []byte("opaque payload bytes")

	require.NoError(t, WriteFrame(&buf, h, payload))

	gotHeader, gotPayload, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, h, gotHeader)
	assert.Equal(t, payload, gotPayload)
}

func TestReadFrameReassemblesPartialReads(t *testing.T) {
	var buf bytes.Buffer
	h := Header{ClientID: "client-2"}
	require.NoError(t, WriteFrame(&buf, h, []byte("body")))

	// One byte at a time forces every length and section read to be
	// reassembled from partial reads.
	gotHeader, gotPayload, err := ReadFrame(iotest.OneByteReader(&buf), 0)
	require.NoError(t, err)
	assert.Equal(t, h, gotHeader)
	assert.Equal(t, []byte("body"), gotPayload)
}

func TestReadFrameMultipleFramesSequential(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Header{ClientID: "a"}, []byte("one")))
	require.NoError(t, WriteFrame(&buf, Header{ClientID: "b"}, []byte("two")))

	h1, p1, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	h2, p2, err := ReadFrame(&buf, 0)
	require.NoError(t, err)

	assert.Equal(t, "a", h1.ClientID)
	assert.Equal(t, []byte("one"), p1)
	assert.Equal(t, "b", h2.ClientID)
	assert.Equal(t, []byte("two"), p2)
}

func TestReadFrameRejectsOversizedSection(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(binary.BigEndian.AppendUint32(nil, 1<<20))

	_, _, err := ReadFrame(&buf, 4096)
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
}

func TestReadFrameTruncated(t *testing.T) {
	var full bytes.Buffer
	require.NoError(t, WriteFrame(&full, Header{ClientID: "x"}, []byte("payload")))

	truncated := full.Bytes()[:full.Len()-3]
	_, _, err := ReadFrame(bytes.NewReader(truncated), 0)
	require.Error(t, err)
}

func TestReadFrameEOFOnEmpty(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLengthsAreBigEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Header{ClientID: "e"}, []byte("zz")))

	raw := buf.Bytes()
	headerLen := binary.BigEndian.Uint32(raw[:4])
	payloadLen := binary.BigEndian.Uint32(raw[4+headerLen : 8+headerLen])
	assert.Equal(t, uint32(2), payloadLen)
}

func TestDecodeDatagram(t *testing.T) {
	var buf bytes.Buffer
	h := Header{ClientID: "dgram", Encrypted: true}
	require.NoError(t, WriteFrame(&buf, h, []byte("report")))

	gotHeader, gotPayload, err := DecodeDatagram(buf.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, h, gotHeader)
	assert.Equal(t, []byte("report"), gotPayload)
}
