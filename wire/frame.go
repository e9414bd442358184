// Package wire implements the length-prefixed frame codec every message
// on the peer socket is carried in: a 4-byte big-endian length followed
// by that many body bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// SaneFrameLength is the maximum accepted frame body length (5 MiB). It
// bounds allocation before any peer authentication has happened.
const SaneFrameLength = 5 * 1024 * 1024

var (
	// ErrFrameTooLarge is returned by ReadFrame when the length prefix
	// exceeds SaneFrameLength. The body is never read.
	ErrFrameTooLarge = errors.New("wire: frame exceeds sane length")
	// ErrTruncated is returned when the stream closes before or during the
	// length prefix, or mid-body.
	ErrTruncated = errors.New("wire: truncated frame")
)

// ReadFrame reads one length-prefixed frame from r: 4 bytes big-endian
// length L, then exactly L body bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("wire: read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > SaneFrameLength {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("wire: read frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes the 4-byte big-endian length of body followed by
// body, then flushes if w is a Flusher. A partial write is surfaced as an
// IoError and should terminate the session.
func WriteFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("wire: flush: %w", err)
		}
	}
	return nil
}
