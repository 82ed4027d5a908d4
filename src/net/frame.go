package net

import (
	"encoding/binary"
	"errors"
	"io"
)

// frameHeaderLen is the size of the big-endian length prefix of a frame.
const frameHeaderLen = 4

// DefaultMaxFrame bounds the payload of a single frame.
const DefaultMaxFrame = 8 * 1024 * 1024

var (
	ErrShortFrame    = errors.New("net: short frame")
	ErrFrameTooLarge = errors.New("net: frame too large")
)

// ReadFrame reads one length-prefixed frame from r. It returns io.EOF if the
// stream ends cleanly before a new frame starts, and ErrShortFrame if it ends
// in the middle of one.
func ReadFrame(r io.Reader, maxFrame uint32) ([]byte, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if maxFrame > 0 && n > maxFrame {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload to w preceded by its length.
func WriteFrame(w io.Writer, payload []byte, maxFrame uint32) error {
	if uint64(len(payload)) > uint64(^uint32(0)) || (maxFrame > 0 && uint32(len(payload)) > maxFrame) {
		return ErrFrameTooLarge
	}

	buf := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[:frameHeaderLen], uint32(len(payload)))
	copy(buf[frameHeaderLen:], payload)

	_, err := w.Write(buf)
	return err
}
