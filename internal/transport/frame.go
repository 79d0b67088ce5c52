package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Delimiter terminates every frame on a socket connection.
const Delimiter byte = '\f'

// MessageEvent is the frame type carrying envelopes.
const MessageEvent = "message"

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeFrame returns the node-ipc wire form of one event: a JSON object
// {"type": event, "data": data}. The delimiter is not included.
func EncodeFrame(event string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		data = []byte("null")
	}
	out, err := json.Marshal(frame{Type: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return out, nil
}

// DecodeFrame parses one frame body.
func DecodeFrame(body []byte) (event string, data []byte, err error) {
	var f frame
	if err := json.Unmarshal(body, &f); err != nil {
		return "", nil, fmt.Errorf("decode frame: %w", err)
	}
	return f.Type, f.Data, nil
}

// WriteFrame writes one delimited frame to w.
func WriteFrame(w io.Writer, event string, data []byte) error {
	out, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	out = append(out, Delimiter)
	_, err = w.Write(out)
	return err
}

// FrameReader splits a stream into delimited frames.
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader creates a reader accepting frames up to maxSize bytes.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	scanner := bufio.NewScanner(r)
	initial := 64 * 1024
	if maxSize < initial {
		initial = maxSize
	}
	scanner.Buffer(make([]byte, initial), maxSize)
	scanner.Split(splitFrames)
	return &FrameReader{scanner: scanner}
}

// Next returns the next frame body. Empty frames are skipped and a trailing
// partial frame at EOF is discarded. Returns io.EOF at end of stream.
func (r *FrameReader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		body := bytes.TrimSpace(r.scanner.Bytes())
		if len(body) == 0 {
			continue
		}
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrFrameTooLarge
		}
		return nil, err
	}
	return nil, io.EOF
}

func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, Delimiter); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
