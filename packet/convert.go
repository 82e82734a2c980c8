package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func uint16Byte(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func uint32Byte(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func uint64Byte(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// decode reads fixed size fields from buf in network byte order
func decode(buf *bytes.Buffer, fields []interface{}) error {
	var err error
	for _, field := range fields {
		err = binary.Read(buf, binary.BigEndian, field)
		if err != nil {
			return fmt.Errorf("Unable to read from buffer: %w", ErrTruncatedInput)
		}
	}
	return nil
}

// readBytes consumes exactly n bytes of buf
func readBytes(buf *bytes.Buffer, n int) ([]byte, error) {
	if buf.Len() < n {
		return nil, fmt.Errorf("need %d bytes, %d left: %w", n, buf.Len(), ErrTruncatedInput)
	}

	ret := make([]byte, n)
	copy(ret, buf.Next(n))
	return ret, nil
}
