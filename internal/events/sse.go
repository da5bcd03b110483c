// Package events reads the service's Server-Sent Events push channel and
// classifies each frame into a Notification the live view can act on.
package events

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const maxFrameBytes = 1 << 20

// Frame is one dispatched SSE event.
type Frame struct {
	Event string
	ID    string
	Data  string
}

// ErrFrameTooLarge is returned by Next for a frame whose data exceeds 1 MiB.
// The frame has been consumed, so the following call resumes at the next one.
var ErrFrameTooLarge = errors.New("event frame exceeds 1 MiB")

// Reader splits an SSE byte stream into frames.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next frame carrying data. Comment lines, retry hints and
// frames with no data lines are skipped. At end of stream Next returns io.EOF;
// a trailing frame without its terminating blank line is discarded. An
// oversized frame yields its event and id with ErrFrameTooLarge.
func (r *Reader) Next() (Frame, error) {
	var (
		frame     Frame
		data      []string
		hasData   bool
		size      int
		oversized bool
	)
	for {
		line, tooLong, err := r.readLine()
		if err != nil {
			return Frame{}, err
		}
		if tooLong {
			oversized = true
			data = nil
			continue
		}
		if line == "" {
			if oversized {
				return Frame{Event: frame.Event, ID: frame.ID}, ErrFrameTooLarge
			}
			if hasData {
				frame.Data = strings.Join(data, "\n")
				return frame, nil
			}
			frame = Frame{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
		case "data":
			hasData = true
			size += len(value) + 1
			if size > maxFrameBytes {
				oversized = true
				data = nil
			}
			if !oversized {
				data = append(data, value)
			}
		case "id":
			frame.ID = value
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxFrameBytes is drained and reported as tooLong. A final line with no
// newline is discarded and io.EOF returned.
func (r *Reader) readLine() (string, bool, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, err := r.br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxFrameBytes+2 {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return "", true, nil
			}
			line := strings.TrimSuffix(string(buf), "\n")
			return strings.TrimSuffix(line, "\r"), false, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return "", false, err
		}
	}
}
