// Package framing encodes document payloads in the catalog's compressed
// container: a 2-byte flavor header, a raw deflate body and a 4-byte
// big-endian Adler trailer computed over header and body together.
//
// The trailer covers the header, so standard zlib readers cannot decode
// these containers. A bare deflate encoding without header and trailer is
// available separately through EncodeRaw and DecodeRaw; the two are never
// auto-detected.
package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"
	"io"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrIntegrity reports a container whose bytes do not verify: a bad
	// trailer, an unknown header, a corrupt body or a length mismatch.
	ErrIntegrity = errors.New("framing: integrity check failed")

	// ErrInvalidArgument reports empty input to an encoder or decoder.
	ErrInvalidArgument = errors.New("framing: invalid argument")
)

const (
	headerSize  = 2
	trailerSize = 4
)

// Level selects both the header tag and the deflate effort.
type Level uint8

const (
	LevelNone Level = iota
	LevelFast
	LevelDefault
	LevelBest
)

var headers = [...][headerSize]byte{
	LevelNone:    {0x78, 0x01},
	LevelFast:    {0x78, 0x5E},
	LevelDefault: {0x78, 0x9C},
	LevelBest:    {0x78, 0xDA},
}

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelFast:
		return "fast"
	case LevelDefault:
		return "default"
	case LevelBest:
		return "best"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// ParseLevel parses a level name. The empty string selects LevelDefault.
func ParseLevel(name string) (Level, error) {
	switch name {
	case "none":
		return LevelNone, nil
	case "fast":
		return LevelFast, nil
	case "default", "":
		return LevelDefault, nil
	case "best":
		return LevelBest, nil
	default:
		return 0, fmt.Errorf("unknown compression level: %q", name)
	}
}

func (l Level) valid() bool { return int(l) < len(headers) }

func (l Level) flateLevel() int {
	switch l {
	case LevelNone:
		return flate.NoCompression
	case LevelFast:
		return flate.BestSpeed
	case LevelBest:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

// HeaderFor returns the two header bytes written for level.
func HeaderFor(level Level) ([headerSize]byte, error) {
	if !level.valid() {
		return [headerSize]byte{}, fmt.Errorf("%w: level %d", ErrInvalidArgument, level)
	}
	return headers[level], nil
}

// LevelOf identifies a header. ok is false for unrecognized tags.
func LevelOf(header []byte) (Level, bool) {
	if len(header) < headerSize {
		return 0, false
	}
	for i, h := range headers {
		if header[0] == h[0] && header[1] == h[1] {
			return Level(i), true
		}
	}
	return 0, false
}

// Trailer returns the 4 trailer bytes for buf: a2 high, a2 low, a1 high,
// a1 low, with a1 starting at 1 and a2 at 0, both modulo 65521.
func Trailer(buf []byte) [trailerSize]byte {
	var t [trailerSize]byte
	binary.BigEndian.PutUint32(t[:], adler32.Checksum(buf))
	return t
}

// Encode compresses data into a framed container.
func Encode(data []byte, level Level) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}
	header, err := HeaderFor(level)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(data)/2 + headerSize + trailerSize)
	buf.Write(header[:])
	if err := deflate(&buf, data, level); err != nil {
		return nil, err
	}
	trailer := Trailer(buf.Bytes())
	buf.Write(trailer[:])
	return buf.Bytes(), nil
}

// Decode verifies and decompresses a framed container.
func Decode(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrInvalidArgument)
	}
	if len(framed) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: container of %d bytes is truncated", ErrIntegrity, len(framed))
	}

	split := len(framed) - trailerSize
	want := Trailer(framed[:split])
	if !bytes.Equal(want[:], framed[split:]) {
		return nil, fmt.Errorf("%w: trailer %x, computed %x", ErrIntegrity, framed[split:], want)
	}
	if _, ok := LevelOf(framed); !ok {
		return nil, fmt.Errorf("%w: unknown header %x", ErrIntegrity, framed[:headerSize])
	}

	return inflate(framed[headerSize:split])
}

// EncodeRaw compresses data as a bare deflate stream.
func EncodeRaw(data []byte, level Level) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}
	if !level.valid() {
		return nil, fmt.Errorf("%w: level %d", ErrInvalidArgument, level)
	}
	var buf bytes.Buffer
	if err := deflate(&buf, data, level); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRaw decompresses a bare deflate stream.
func DecodeRaw(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty stream", ErrInvalidArgument)
	}
	return inflate(body)
}

func deflate(w io.Writer, data []byte, level Level) error {
	fw, err := flate.NewWriter(w, level.flateLevel())
	if err != nil {
		return fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("deflating payload: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("finishing deflate stream: %w", err)
	}
	return nil
}

func inflate(body []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("%w: inflating body: %v", ErrIntegrity, err)
	}
	return out, nil
}
