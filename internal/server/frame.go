package server

import "bytes"

// DefaultFrameSize is the size of every frame on the wire, both ways.
const DefaultFrameSize = 1460

// frame is the per-connection exchange buffer. Commands are only
// interpreted once recvLen reaches the frame size.
type frame struct {
	send, recv       []byte
	sentLen, recvLen int
	exchanges        int
}

func newFrame(size int) *frame {
	return &frame{
		send: make([]byte, size),
		recv: make([]byte, size),
	}
}

// free returns the unfilled tail of the receive buffer.
func (f *frame) free() []byte {
	return f.recv[f.recvLen:]
}

// advance accounts for n bytes written directly into free().
func (f *frame) advance(n int) {
	f.recvLen += n
	if f.recvLen > len(f.recv) {
		f.recvLen = len(f.recv)
	}
}

func (f *frame) complete() bool {
	return f.recvLen == len(f.recv)
}

// line returns the received bytes as an ASCII line. Clients send a
// NUL terminated string padded to the frame size with arbitrary bytes.
func (f *frame) line() string {
	b := f.recv[:f.recvLen]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, "\r\n"))
}

func (f *frame) resetRecv() {
	for i := range f.recv {
		f.recv[i] = 0
	}
	f.recvLen = 0
}

// load zero-pads or truncates msg into the send buffer.
func (f *frame) load(msg string) {
	n := copy(f.send, msg)
	for i := n; i < len(f.send); i++ {
		f.send[i] = 0
	}
	f.sentLen = 0
}

func (f *frame) pending() []byte {
	return f.send[f.sentLen:]
}
