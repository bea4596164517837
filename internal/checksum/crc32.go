// Package checksum computes the CRC-32 (ISO-HDLC, zip) checksum of file
// content, streaming it in bounded chunks.
package checksum

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"
)

// Streaming buffer bounds, in bytes.
const (
	MinBufferSize     = 512
	MaxBufferSize     = 64 * 1024
	DefaultBufferSize = 4096
)

// ErrNilReader is returned when Sum is called without a reader.
var ErrNilReader = errors.New("checksum: nil reader")

// table is the reflected 0xEDB88320 lookup table.
var table = crc32.MakeTable(crc32.IEEE)

// Engine computes CRC-32 checksums over streams. The buffer size only
// controls how much is read at a time; it never changes the result.
type Engine struct {
	bufferSize int
}

// New creates an Engine that reads in chunks of bufferSize bytes.
// Zero selects DefaultBufferSize; other values are clamped to
// [MinBufferSize, MaxBufferSize].
func New(bufferSize int) *Engine {
	return &Engine{bufferSize: clampBufferSize(bufferSize)}
}

func clampBufferSize(n int) int {
	switch {
	case n == 0:
		return DefaultBufferSize
	case n < MinBufferSize:
		return MinBufferSize
	case n > MaxBufferSize:
		return MaxBufferSize
	default:
		return n
	}
}

// BufferSize returns the effective chunk size.
func (e *Engine) BufferSize() int {
	return e.bufferSize
}

// Sum reads r to EOF and returns its checksum.
func (e *Engine) Sum(r io.Reader) (uint32, error) {
	if r == nil {
		return 0, ErrNilReader
	}

	buf := make([]byte, e.bufferSize)
	var sum uint32
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sum = crc32.Update(sum, table, buf[:n])
		}
		if err == io.EOF {
			return sum, nil
		}
		if err != nil {
			return 0, fmt.Errorf("reading stream: %w", err)
		}
	}
}

// Bytes returns the checksum of b. The checksum of an empty buffer is 0.
func Bytes(b []byte) uint32 {
	return crc32.Checksum(b, table)
}

// Format renders a checksum as 8 upper-case hex digits.
func Format(sum uint32) string {
	return fmt.Sprintf("%08X", sum)
}

// Parse is the inverse of Format. Lower-case digits are accepted.
func Parse(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing checksum %q: %w", s, err)
	}
	return uint32(v), nil
}
