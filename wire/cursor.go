package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var errTruncated = errors.New("truncated wire message")

// cursor advances through one framed wire message. All multi-byte integers
// on the wire are little-endian.
type cursor struct {
	data []byte
	off  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.data) {
		return nil, errTruncated
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) u8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) i32() (int32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// cstring reads a null-terminated string and consumes the terminator.
func (c *cursor) cstring() (string, error) {
	for i := c.off; i < len(c.data); i++ {
		if c.data[i] == 0 {
			s := string(c.data[c.off:i])
			c.off = i + 1
			return s, nil
		}
	}
	return "", errTruncated
}

// remainderOf returns the bytes between the cursor and the end of a framed
// message that began at offset start with total length msgLen.
func (c *cursor) remainderOf(start int, msgLen int32) ([]byte, error) {
	end := start + int(msgLen)
	if end < c.off || end > len(c.data) {
		return nil, errTruncated
	}
	b := c.data[c.off:end]
	c.off = end
	return b, nil
}
