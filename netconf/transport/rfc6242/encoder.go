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
	"fmt"
	"io"
)

// EOM is the NETCONF 1.0 end-of-message marker.
const EOM = "]]>]]>"

// rfc6242maximumAllowedChunkSize is the largest chunk-size RFC 6242 permits
// in a chunk header (2^32 - 1, clamped here to a sane default).
const rfc6242maximumAllowedChunkSize = 1 << 20

// Encoder frames messages written to it, using EOM markers until
// SetChunkedFraming is called, after which it switches to RFC 6242
// chunked framing for every subsequent message.
type Encoder struct {
	w              io.Writer
	ChunkedFraming bool
	MaxChunkSize   uint32
}

// NewEncoder creates an Encoder writing framed messages to w.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{w: w, MaxChunkSize: rfc6242maximumAllowedChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Write writes p straight through as part of the current message,
// split into chunks if chunked framing is active.
func (e *Encoder) Write(p []byte) (int, error) {
	if !e.ChunkedFraming {
		return e.w.Write(p)
	}

	total := 0
	for len(p) > 0 {
		n := len(p)
		if uint32(n) > e.MaxChunkSize {
			n = int(e.MaxChunkSize)
		}
		if _, err := fmt.Fprintf(e.w, "\n#%d\n", n); err != nil {
			return total, err
		}
		if _, err := e.w.Write(p[:n]); err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

// EndOfMessage terminates the current message: an EOM marker in 1.0
// framing, or a "\n##\n" chunk terminator once chunked framing is active.
func (e *Encoder) EndOfMessage() error {
	if e.ChunkedFraming {
		_, err := io.WriteString(e.w, "\n##\n")
		return err
	}
	_, err := io.WriteString(e.w, EOM)
	return err
}

// Close releases any resources held by the encoder. The underlying
// writer is not closed; that is the transport's responsibility.
func (e *Encoder) Close() error {
	return nil
}

// chunkSwitcher is implemented by both Encoder and Decoder so
// SetChunkedFraming can flip either (or both) to chunked framing with a
// single call, as the 1.0->1.1 upgrade does for a decoder/encoder pair.
type chunkSwitcher interface {
	setChunkedFraming()
}

func (e *Encoder) setChunkedFraming() { e.ChunkedFraming = true }

// SetChunkedFraming switches every encoder/decoder passed to it into RFC
// 6242 chunked framing mode for subsequent messages.
func SetChunkedFraming(framers ...chunkSwitcher) {
	for _, f := range framers {
		f.setChunkedFraming()
	}
}
