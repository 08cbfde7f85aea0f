// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package stomp

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrame_EncodeEscapesHeaders(t *testing.T) {
	f := newFrame(cmdSubscribe, "id", "a:b", "destination", "/topic/devices\nx")
	got := string(f.Encode())
	want := "SUBSCRIBE\nid:a\\cb\ndestination:/topic/devices\\nx\n\n\x00"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestFrame_EncodeConnectIsRaw(t *testing.T) {
	f := newFrame(cmdConnect, "accept-version", "1.2,1.1,1.0", "host", "broker:8081")
	want := "CONNECT\naccept-version:1.2,1.1,1.0\nhost:broker:8081\n\n\x00"
	if got := string(f.Encode()); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestFrame_EncodeAddsContentLength(t *testing.T) {
	f := &Frame{Command: "SEND", Body: []byte("hi")}
	if got := string(f.Encode()); got != "SEND\ncontent-length:2\n\nhi\x00" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantCmds  []string
		wantBody  []string
		checkHdrs map[string]string
	}{
		{
			name:     "single message",
			in:       "MESSAGE\nsubscription:s1\ndestination:/topic/devices\n\n{\"deviceId\":\"d1\"}\x00",
			wantCmds: []string{"MESSAGE"},
			wantBody: []string{`{"deviceId":"d1"}`},
		},
		{
			name:     "heart-beats around frames",
			in:       "\n\nRECEIPT\nreceipt-id:1\n\n\x00\nMESSAGE\nsubscription:s1\n\nx\x00\n",
			wantCmds: []string{"RECEIPT", "MESSAGE"},
			wantBody: []string{"", "x"},
		},
		{
			name:     "content-length body with NUL",
			in:       "MESSAGE\ncontent-length:3\n\na\x00b\x00",
			wantCmds: []string{"MESSAGE"},
			wantBody: []string{"a\x00b"},
		},
		{
			name:     "crlf line endings",
			in:       "MESSAGE\r\nsubscription:s1\r\n\r\nbody\x00",
			wantCmds: []string{"MESSAGE"},
			wantBody: []string{"body"},
		},
		{
			name:      "escaped header values",
			in:        "MESSAGE\ndestination:/topic/a\\cb\\\\c\n\n\x00",
			wantCmds:  []string{"MESSAGE"},
			wantBody:  []string{""},
			checkHdrs: map[string]string{"destination": "/topic/a:b\\c"},
		},
		{
			name:      "CONNECTED headers are raw",
			in:        "CONNECTED\nversion:1.2\nserver:a\\cb\n\n\x00",
			wantCmds:  []string{"CONNECTED"},
			wantBody:  []string{""},
			checkHdrs: map[string]string{"server": "a\\cb"},
		},
		{
			name: "heart-beat only",
			in:   "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(frames) != len(tt.wantCmds) {
				t.Fatalf("got %d frames, want %d", len(frames), len(tt.wantCmds))
			}
			for i, f := range frames {
				if f.Command != tt.wantCmds[i] {
					t.Errorf("frame %d command = %q, want %q", i, f.Command, tt.wantCmds[i])
				}
				if !bytes.Equal(f.Body, []byte(tt.wantBody[i])) {
					t.Errorf("frame %d body = %q, want %q", i, f.Body, tt.wantBody[i])
				}
			}
			for k, want := range tt.checkHdrs {
				if got, _ := frames[0].Header(k); got != want {
					t.Errorf("header %s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no header terminator", "MESSAGE\nsubscription:s1"},
		{"header without colon", "MESSAGE\nbogus\n\n\x00"},
		{"missing NUL", "MESSAGE\n\nbody"},
		{"content-length too long", "MESSAGE\ncontent-length:10\n\nabc\x00"},
		{"content-length not followed by NUL", "MESSAGE\ncontent-length:1\n\nabc\x00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.in)); !errors.Is(err, errBadFrame) {
				t.Errorf("Decode() error = %v, want errBadFrame", err)
			}
		})
	}
}

func TestFrame_FirstHeaderWins(t *testing.T) {
	frames, err := Decode([]byte("MESSAGE\nfoo:1\nfoo:2\n\n\x00"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := frames[0].Header("foo"); v != "1" {
		t.Errorf("Header(foo) = %q, want 1", v)
	}
}

func TestParseHeartbeat(t *testing.T) {
	tests := []struct {
		in     string
		wx, wy int64
	}{
		{"10000,5000", 10000, 5000},
		{"0, 0", 0, 0},
		{"garbage", 0, 0},
		{"1,x", 0, 0},
	}
	for _, tt := range tests {
		x, y := parseHeartbeat(tt.in)
		if x.Milliseconds() != tt.wx || y.Milliseconds() != tt.wy {
			t.Errorf("parseHeartbeat(%q) = %v,%v", tt.in, x, y)
		}
	}
}

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"ws://localhost:8081/ws/positions": "localhost",
		"wss://broker.example.com/ws":      "broker.example.com",
		"ws://10.0.0.5":                    "10.0.0.5",
	}
	for in, want := range tests {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
