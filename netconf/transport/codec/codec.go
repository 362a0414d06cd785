// Package codec wraps the standard library's XML encoder/decoder with
// RFC 6242 message framing, so each Encode/Decode call corresponds to
// exactly one NETCONF message on the wire.
package codec

import (
	"encoding/xml"
	"io"

	"github.com/netconf-core/netconf/netconf/transport/rfc6242"
)

// Decoder decodes one XML-framed NETCONF message at a time from an
// RFC 6242 byte stream.
type Decoder struct {
	*xml.Decoder
	ncDecoder *rfc6242.Decoder
}

// Encoder frames and writes one NETCONF message at a time.
type Encoder struct {
	xmlEncoder *xml.Encoder
	ncEncoder  *rfc6242.Encoder
}

// NewDecoder creates a decoder reading framed messages from t.
func NewDecoder(t io.Reader) *Decoder {
	ncDecoder := rfc6242.NewDecoder(t)
	return &Decoder{Decoder: xml.NewDecoder(ncDecoder), ncDecoder: ncDecoder}
}

// NewEncoder creates an encoder writing framed messages to t.
func NewEncoder(t io.Writer) *Encoder {
	ncEncoder := rfc6242.NewEncoder(t)
	return &Encoder{xmlEncoder: xml.NewEncoder(ncEncoder), ncEncoder: ncEncoder}
}

// Encode marshals msg and writes it as one complete, framed message.
func (e *Encoder) Encode(msg interface{}) error {
	if _, err := e.ncEncoder.Write([]byte(xml.Header)); err != nil {
		return err
	}
	if err := e.xmlEncoder.Encode(msg); err != nil {
		return err
	}
	return e.ncEncoder.EndOfMessage()
}

// EnableChunkedFraming switches a decoder/encoder pair from NETCONF 1.0
// EOM framing to RFC 6242 chunked framing, used once both peers'
// capabilities confirm base:1.1 support.
func EnableChunkedFraming(d *Decoder, e *Encoder) {
	rfc6242.SetChunkedFraming(d.ncDecoder, e.ncEncoder)
}
