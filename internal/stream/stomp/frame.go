// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// STOMP commands used by the client.
const (
	cmdConnect     = "CONNECT"
	cmdConnected   = "CONNECTED"
	cmdSubscribe   = "SUBSCRIBE"
	cmdUnsubscribe = "UNSUBSCRIBE"
	cmdDisconnect  = "DISCONNECT"
	cmdMessage     = "MESSAGE"
	cmdReceipt     = "RECEIPT"
	cmdError       = "ERROR"
)

var errBadFrame = errors.New("stomp: malformed frame")

// Frame is a single STOMP frame. Repeated headers keep the first value, as
// the protocol requires.
type Frame struct {
	Command string
	Headers [][2]string
	Body    []byte
}

func newFrame(command string, kv ...string) *Frame {
	f := &Frame{Command: command}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, [2]string{kv[i], kv[i+1]})
	}
	return f
}

// Header returns the first value of key.
func (f *Frame) Header(key string) (string, bool) {
	for _, h := range f.Headers {
		if h[0] == key {
			return h[1], true
		}
	}
	return "", false
}

// escapes reports whether header values of command are escaped. CONNECT and
// CONNECTED frames predate escaping and carry raw values.
func escapes(command string) bool {
	return command != cmdConnect && command != cmdConnected
}

var (
	headerEscaper   = strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n", ":", "\\c")
	headerUnescaper = strings.NewReplacer("\\\\", "\\", "\\r", "\r", "\\n", "\n", "\\c", ":")
)

// Encode serializes the frame, adding content-length when a body is present.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	esc := escapes(f.Command)

	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for _, h := range f.Headers {
		k, v := h[0], h[1]
		if esc {
			k, v = headerEscaper.Replace(k), headerEscaper.Replace(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		if _, ok := f.Header("content-length"); !ok {
			buf.WriteString("content-length:")
			buf.WriteString(strconv.Itoa(len(f.Body)))
			buf.WriteByte('\n')
		}
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Decode parses every frame in data. Heart-beat EOLs between frames are
// skipped; a buffer holding only heart-beats yields no frames.
func Decode(data []byte) ([]*Frame, error) {
	var frames []*Frame
	for {
		data = trimEOL(data)
		if len(data) == 0 {
			return frames, nil
		}
		f, rest, err := decodeOne(data)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		data = rest
	}
}

func trimEOL(data []byte) []byte {
	for len(data) > 0 && (data[0] == '\n' || data[0] == '\r') {
		data = data[1:]
	}
	return data
}

func decodeOne(data []byte) (*Frame, []byte, error) {
	end := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (end < 0 || crlf < end) {
		end, sepLen = crlf, 4
	}
	if end < 0 {
		return nil, nil, fmt.Errorf("%w: missing header terminator", errBadFrame)
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:end]), "\r\n", "\n"), "\n")
	f := &Frame{Command: lines[0]}
	if f.Command == "" {
		return nil, nil, fmt.Errorf("%w: empty command", errBadFrame)
	}
	esc := escapes(f.Command)
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, nil, fmt.Errorf("%w: header %q", errBadFrame, line)
		}
		if esc {
			k, v = headerUnescaper.Replace(k), headerUnescaper.Replace(v)
		}
		f.Headers = append(f.Headers, [2]string{k, v})
	}

	body := data[end+sepLen:]
	if cl, ok := f.Header("content-length"); ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n >= len(body) {
			return nil, nil, fmt.Errorf("%w: content-length %q", errBadFrame, cl)
		}
		if body[n] != 0 {
			return nil, nil, fmt.Errorf("%w: body not NUL terminated", errBadFrame)
		}
		f.Body = append([]byte(nil), body[:n]...)
		return f, body[n+1:], nil
	}

	nul := bytes.IndexByte(body, 0)
	if nul < 0 {
		return nil, nil, fmt.Errorf("%w: body not NUL terminated", errBadFrame)
	}
	f.Body = append([]byte(nil), body[:nul]...)
	return f, body[nul+1:], nil
}
