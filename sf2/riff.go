package sf2

import (
	"encoding/binary"
	"strings"
)

// chunk is a RIFF chunk view into the file buffer.
type chunk struct {
	id     string
	offset int64 // offset of data within the file
	data   []byte
}

// readChunk reads the chunk header at pos within buf. base is the file
// offset of buf[0]. It returns the chunk and the position of the next
// sibling (word aligned).
func readChunk(buf []byte, pos int, base int64, parent string) (chunk, int, error) {
	if len(buf)-pos < 8 {
		return chunk{}, 0, &FormatError{Chunk: parent, Offset: base + int64(pos), Msg: "truncated chunk header"}
	}
	id := string(buf[pos : pos+4])
	size := int(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))
	start := pos + 8
	if size < 0 || size > len(buf)-start {
		return chunk{}, 0, &FormatError{
			Chunk:  id,
			Offset: base + int64(start),
			Msg:    "chunk size exceeds enclosing data",
		}
	}
	c := chunk{id: id, offset: base + int64(start), data: buf[start : start+size]}
	next := start + size + size&1
	if next > len(buf) {
		next = len(buf)
	}
	return c, next, nil
}

// children splits the payload of c (after skip bytes) into sub-chunks.
func (c chunk) children(skip int) ([]chunk, error) {
	var out []chunk
	buf := c.data[skip:]
	base := c.offset + int64(skip)
	for pos := 0; pos < len(buf); {
		sub, next, err := readChunk(buf, pos, base, c.id)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
		pos = next
	}
	return out, nil
}

// listType returns the form type of a RIFF or LIST chunk.
func (c chunk) listType() string {
	if len(c.data) < 4 {
		return ""
	}
	return string(c.data[:4])
}

func zstring(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}
