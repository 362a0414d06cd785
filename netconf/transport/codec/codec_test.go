package codec

import (
	"bytes"
	"encoding/xml"
	"testing"

	assert "github.com/stretchr/testify/require"
)

type testStr struct {
	XMLName xml.Name `xml:"test"`
	Field   string   `xml:"field"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)

	err := enc.Encode(&testStr{Field: "value"})
	assert.NoError(t, err)

	dec := NewDecoder(buf)
	var got testStr
	assert.NoError(t, dec.Decode(&got))
	assert.Equal(t, "value", got.Field)
}

func TestEnableChunkedFraming(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)
	dec := NewDecoder(buf)

	assert.False(t, enc.ncEncoder.ChunkedFraming)
	EnableChunkedFraming(dec, enc)
	assert.True(t, enc.ncEncoder.ChunkedFraming)
}
