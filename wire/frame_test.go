package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}, buf.Bytes())

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestReadFrameEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadFrameOversizeRejected(t *testing.T) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], SaneFrameLength+1)
	buf := bytes.NewBuffer(lenBuf[:])

	_, err := ReadFrame(buf)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncatedPrefix(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x00})
	_, err := ReadFrame(buf)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 10)
	buf := bytes.NewBuffer(append(lenBuf[:], []byte("short")...))

	_, err := ReadFrame(buf)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadFrameMaxSizeAccepted(t *testing.T) {
	var buf bytes.Buffer
	body := bytes.Repeat([]byte{0x42}, SaneFrameLength)
	require.NoError(t, WriteFrame(&buf, body))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, body, got)
}
