// Copyright 2018 Andrew Fort
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package rfc6242

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

const defaultScannerBufferSize = 4096

// FramerFn scans one framing-layer token (an EOM-delimited message, or one
// chunk) from data, returning how much of data to advance and the
// unwrapped payload bytes within it. It follows bufio.SplitFunc's
// contract so it can drive a bufio.Scanner directly.
type FramerFn func(data []byte, atEOF bool) (advance int, token []byte, err error)

// Decoder reads RFC 6242-framed NETCONF messages from an underlying byte
// stream, reassembling chunked messages transparently. It presents a
// plain io.Reader of de-framed message bytes to whatever XML decoder sits
// on top of it; see Read for how message boundaries are (not) signalled.
type Decoder struct {
	r              io.Reader
	scanner        *bufio.Scanner
	framer         FramerFn
	bufSize        int
	ChunkedFraming bool

	pending []byte // unread bytes from the current message, already de-framed
}

// NewDecoder creates a Decoder reading framed messages from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: r, bufSize: defaultScannerBufferSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.framer == nil {
		d.framer = d.eomSplit
	}
	d.scanner = bufio.NewScanner(d.r)
	d.scanner.Buffer(make([]byte, 0, d.bufSize), d.bufSize)
	d.scanner.Split(d.split)
	return d
}

func (d *Decoder) setChunkedFraming() { d.ChunkedFraming = true }

// split dispatches to the active framer, so switching ChunkedFraming
// mid-stream (after the hello exchange) takes effect on the decoder's
// very next scan.
func (d *Decoder) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if d.ChunkedFraming {
		return d.chunkSplit(data, atEOF)
	}
	return d.framer(data, atEOF)
}

// eomSplit implements NETCONF 1.0 end-of-message framing: everything up
// to and including the first "]]>]]>" marker is one message.
func (d *Decoder) eomSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, []byte(EOM)); i >= 0 {
		return i + len(EOM), data[:i], nil
	}
	if atEOF {
		if len(data) == 0 {
			return 0, nil, io.EOF
		}
		return 0, nil, io.ErrUnexpectedEOF
	}
	return 0, nil, nil
}

// chunkSplit implements RFC 6242 chunked framing: a sequence of
// "\n#SIZE\n" + SIZE bytes chunks, terminated by "\n##\n". One call
// returns the de-chunked payload of one complete message.
func (d *Decoder) chunkSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	var out []byte
	pos := 0
	for {
		if pos >= len(data) {
			if atEOF {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, nil
		}
		if data[pos] != '\n' {
			return 0, nil, fmt.Errorf("rfc6242: malformed chunk, expected LF got %q", data[pos])
		}
		nl := bytes.IndexByte(data[pos+1:], '\n')
		if nl < 0 {
			if atEOF {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, nil
		}
		header := data[pos+1 : pos+1+nl]
		headerEnd := pos + 1 + nl + 1

		if string(header) == "#" {
			return headerEnd, out, nil
		}
		if len(header) == 0 || header[0] != '#' {
			return 0, nil, fmt.Errorf("rfc6242: malformed chunk header %q", header)
		}
		size, perr := strconv.ParseUint(string(header[1:]), 10, 32)
		if perr != nil {
			return 0, nil, fmt.Errorf("rfc6242: invalid chunk size %q: %w", header[1:], perr)
		}

		need := headerEnd + int(size)
		if need > len(data) {
			if atEOF {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, nil
		}

		out = append(out, data[headerEnd:need]...)
		pos = need
	}
}

// Read delivers de-framed message bytes as a single continuous stream:
// framing markers (EOM or chunk headers/terminators) are stripped
// transparently and message boundaries are not signalled by io.EOF, so an
// xml.Decoder placed on top can Token() its way through an unbounded
// sequence of top-level elements on one connection, exactly as the
// message pump's receive loop expects. Read only returns io.EOF when the
// underlying transport itself is exhausted.
func (d *Decoder) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		d.pending = d.scanner.Bytes()
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}
