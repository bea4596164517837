package checksum

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
)

// chunkReader hands out at most n bytes per Read.
type chunkReader struct {
	data []byte
	n    int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	limit := r.n
	if limit > len(p) {
		limit = len(p)
	}
	if limit > len(r.data) {
		limit = len(r.data)
	}
	copy(p, r.data[:limit])
	r.data = r.data[limit:]
	return limit, nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestBytes(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{name: "nil", input: nil, want: 0},
		{name: "empty", input: []byte{}, want: 0},
		{name: "check value", input: []byte("123456789"), want: 0xCBF43926},
		{name: "single byte", input: []byte("a"), want: 0xE8B7BE43},
		{name: "pangram", input: []byte("The quick brown fox jumps over the lazy dog"), want: 0x414FA339},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bytes(tt.input); got != tt.want {
				t.Errorf("Bytes() = %08X, want %08X", got, tt.want)
			}
		})
	}
}

func TestNew_ClampsBufferSize(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: DefaultBufferSize},
		{requested: 1, want: MinBufferSize},
		{requested: 511, want: MinBufferSize},
		{requested: 512, want: 512},
		{requested: 10000, want: 10000},
		{requested: 65536, want: 65536},
		{requested: 1 << 20, want: MaxBufferSize},
		{requested: -5, want: MinBufferSize},
	}

	for _, tt := range tests {
		if got := New(tt.requested).BufferSize(); got != tt.want {
			t.Errorf("New(%d).BufferSize() = %d, want %d", tt.requested, got, tt.want)
		}
	}
}

func TestEngine_Sum(t *testing.T) {
	t.Run("empty stream is zero", func(t *testing.T) {
		got, err := New(0).Sum(strings.NewReader(""))
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		if got != 0 {
			t.Errorf("Sum() = %08X, want 0", got)
		}
	})

	t.Run("matches whole-buffer checksum for any chunking", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		data := make([]byte, 200_003)
		rng.Read(data)
		want := Bytes(data)

		for _, bufSize := range []int{512, 4096, 65536} {
			for _, chunk := range []int{1, 7, 511, 4096, 65536} {
				if chunk == 1 && bufSize != 512 {
					continue // slow, one pass is enough
				}
				r := &chunkReader{data: data, n: chunk}
				got, err := New(bufSize).Sum(r)
				if err != nil {
					t.Fatalf("Sum() error = %v", err)
				}
				if got != want {
					t.Errorf("Sum(buffer=%d, chunk=%d) = %08X, want %08X", bufSize, chunk, got, want)
				}
			}
		}
	})

	t.Run("nil reader", func(t *testing.T) {
		_, err := New(0).Sum(nil)
		if !errors.Is(err, ErrNilReader) {
			t.Errorf("Sum(nil) error = %v, want ErrNilReader", err)
		}
	})

	t.Run("read errors propagate", func(t *testing.T) {
		_, err := New(0).Sum(failingReader{})
		if err == nil {
			t.Error("Sum() expected error, got nil")
		}
	})

	t.Run("stream equals bytes for small input", func(t *testing.T) {
		data := []byte("hello, catalog")
		got, err := New(0).Sum(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		if got != Bytes(data) {
			t.Errorf("Sum() = %08X, want %08X", got, Bytes(data))
		}
	})
}

func TestFormatParse(t *testing.T) {
	for _, sum := range []uint32{0, 1, 0xCBF43926, 0xFFFFFFFF} {
		text := Format(sum)
		if len(text) != 8 {
			t.Errorf("Format(%d) = %q, want 8 digits", sum, text)
		}
		got, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", text, err)
		}
		if got != sum {
			t.Errorf("Parse(Format(%08X)) = %08X", sum, got)
		}
	}

	if got, err := Parse("cbf43926"); err != nil || got != 0xCBF43926 {
		t.Errorf("Parse(lower) = %08X, %v", got, err)
	}
	if _, err := Parse("not-hex"); err == nil {
		t.Error("Parse(not-hex) expected error")
	}
}
