package rfc6242

import (
	"bytes"
	"io"
	"testing"

	assert "github.com/stretchr/testify/require"
)

func readAll(t *testing.T, d *Decoder) string {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := d.Read(buf)
	assert.NoError(t, err)
	return string(buf[:n])
}

func TestEOMDecoding(t *testing.T) {
	src := bytes.NewBufferString("<hello/>" + EOM + "<hello2/>" + EOM)
	d := NewDecoder(src)

	assert.Equal(t, "<hello/>", readAll(t, d))
	assert.Equal(t, "<hello2/>", readAll(t, d))
}

func TestChunkedDecoding(t *testing.T) {
	src := bytes.NewBufferString("\n#3\nABC\n#3\nDEF\n##\n")
	d := NewDecoder(src)
	SetChunkedFraming(d)

	assert.Equal(t, "ABCDEF", readAll(t, d))
}

func TestEOMDecodingTruncated(t *testing.T) {
	src := bytes.NewBufferString("<hello/>")
	d := NewDecoder(src)

	buf := make([]byte, 4096)
	_, err := d.Read(buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
