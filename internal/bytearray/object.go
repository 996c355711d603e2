package bytearray

import (
	"bytes"
	"fmt"

	"github.com/yutopp/go-amf0"
)

// ReadObject decodes one AMF0 value at the cursor into v.
func (b *ByteBuffer) ReadObject(v interface{}) error {
	r := bytes.NewReader(b.buf[b.pos:])
	if err := amf0.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("read amf0 object: %w", err)
	}
	b.pos = len(b.buf) - r.Len()
	return nil
}

// WriteObject encodes v as an AMF0 value at the cursor.
func (b *ByteBuffer) WriteObject(v interface{}) error {
	var out bytes.Buffer
	if err := amf0.NewEncoder(&out).Encode(v); err != nil {
		return fmt.Errorf("write amf0 object: %w", err)
	}
	_, _ = b.Write(out.Bytes())
	return nil
}
