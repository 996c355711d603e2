package bytearray

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is used by the UTF helpers.
const DefaultCharset = "utf-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// lookupCharset resolves an IANA name first, then the WHATWG labels
// (which accept aliases such as "utf8" or "latin1").
func lookupCharset(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCharset
	}
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		return enc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCharset, name)
}

func isUTF8(enc encoding.Encoding) bool {
	return enc == unicode.UTF8 || enc == unicode.UTF8BOM
}

// ReadMultiByte decodes length bytes under the named charset.
//
// A leading UTF-8 byte-order mark is dropped when the charset is UTF-8. The decoded
// text, encoded again in the same charset, must occupy exactly the bytes that were
// consumed; anything else means the frame was cut short or misaligned.
func (b *ByteBuffer) ReadMultiByte(length int, charset string) (string, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", fmt.Errorf("%w: length %d", ErrInvalidLength, length)
	}
	if length > b.BytesAvailable() {
		return "", fmt.Errorf("%w: need %d, have %d", ErrOutOfRange, length, b.BytesAvailable())
	}

	raw := b.buf[b.pos : b.pos+length]

	if isUTF8(enc) {
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: invalid utf-8 in %d byte string", ErrOutOfRange, length)
		}
		b.pos += length
		return string(raw), nil
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s string: %w", charset, err)
	}
	reencoded, err := enc.NewEncoder().Bytes(decoded)
	if err != nil || len(reencoded) != len(raw) {
		return "", fmt.Errorf("%w: %s string does not span %d bytes", ErrOutOfRange, charset, len(raw))
	}
	b.pos += length
	return string(decoded), nil
}

// ReadUTF reads a string prefixed by its unsigned 16-bit byte length.
func (b *ByteBuffer) ReadUTF() (string, error) {
	start := b.pos
	n, err := b.ReadUint16()
	if err != nil {
		return "", err
	}
	s, err := b.ReadMultiByte(int(n), DefaultCharset)
	if err != nil {
		b.pos = start
		return "", err
	}
	return s, nil
}

// ReadUTFBytes reads n bytes of UTF-8 text.
func (b *ByteBuffer) ReadUTFBytes(n int) (string, error) {
	return b.ReadMultiByte(n, DefaultCharset)
}

// WriteMultiByte encodes s under the named charset at the cursor.
func (b *ByteBuffer) WriteMultiByte(s, charset string) error {
	enc, err := lookupCharset(charset)
	if err != nil {
		return err
	}
	if isUTF8(enc) {
		_, _ = b.Write([]byte(s))
		return nil
	}
	p, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("encode %s string: %w", charset, err)
	}
	_, _ = b.Write(p)
	return nil
}

// WriteUTF writes s prefixed by its unsigned 16-bit byte length.
func (b *ByteBuffer) WriteUTF(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: utf string of %d bytes exceeds %d", ErrInvalidLength, len(s), math.MaxUint16)
	}
	b.WriteUint16(uint16(len(s)))
	_, _ = b.Write([]byte(s))
	return nil
}

// WriteUTFBytes writes s as UTF-8 without a length prefix.
func (b *ByteBuffer) WriteUTFBytes(s string) {
	_, _ = b.Write([]byte(s))
}
