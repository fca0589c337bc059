package sf2

import "fmt"

// FormatError reports a malformed or unsupported SoundFont file.
type FormatError struct {
	Chunk  string // chunk id, e.g. "pgen"; empty for file-level problems
	Offset int64  // byte offset of the chunk data within the file
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Chunk == "" {
		return "sf2: " + e.Msg
	}
	return fmt.Sprintf("sf2: chunk %q at offset %d: %s", e.Chunk, e.Offset, e.Msg)
}

func formatErrorf(c chunk, format string, args ...any) error {
	return &FormatError{Chunk: c.id, Offset: c.offset, Msg: fmt.Sprintf(format, args...)}
}
