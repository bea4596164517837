// Package digest computes cryptographic content digests and renders them
// in the one text encoding a catalog stores. Stored digests are compared by
// exact text, so a catalog must never mix encodings.
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a digest function.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Encoding names the text form of a stored digest.
type Encoding string

const (
	Base64   Encoding = "base64"
	Hex      Encoding = "hex" // lower-case
	HexUpper Encoding = "HEX"
)

var (
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
	ErrUnknownEncoding  = errors.New("unknown digest encoding")
)

// Engine produces encoded digests for one (algorithm, encoding) pair.
type Engine struct {
	alg Algorithm
	enc Encoding
}

// New validates the pair and returns an Engine. Empty values select
// SHA1 and Base64.
func New(alg Algorithm, enc Encoding) (*Engine, error) {
	if alg == "" {
		alg = SHA1
	}
	if enc == "" {
		enc = Base64
	}
	switch alg {
	case SHA1, SHA256, BLAKE3:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
	switch enc {
	case Base64, Hex, HexUpper:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
	return &Engine{alg: alg, enc: enc}, nil
}

func (e *Engine) Algorithm() Algorithm { return e.alg }
func (e *Engine) Encoding() Encoding   { return e.enc }

// Size is the raw digest length in bytes.
func (e *Engine) Size() int {
	return e.NewHash().Size()
}

// NewHash returns a fresh streaming hash for the engine's algorithm.
func (e *Engine) NewHash() hash.Hash {
	switch e.alg {
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// Sum reads r to EOF and returns the raw digest.
func (e *Engine) Sum(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errors.New("digest: nil reader")
	}
	h := e.NewHash()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return h.Sum(nil), nil
}

// SumBytes returns the raw digest of b.
func (e *Engine) SumBytes(b []byte) []byte {
	h := e.NewHash()
	h.Write(b)
	return h.Sum(nil)
}

// Digest reads r to EOF and returns the encoded digest.
func (e *Engine) Digest(r io.Reader) (string, error) {
	sum, err := e.Sum(r)
	if err != nil {
		return "", err
	}
	return e.Encode(sum), nil
}

// Encode renders a raw digest in the engine's encoding.
func (e *Engine) Encode(sum []byte) string {
	switch e.enc {
	case Hex:
		return EncodeHex(sum)
	case HexUpper:
		return strings.ToUpper(EncodeHex(sum))
	default:
		return EncodeBase64(sum)
	}
}

// Decode parses an encoded digest and checks its length.
func (e *Engine) Decode(s string) ([]byte, error) {
	var (
		sum []byte
		err error
	)
	switch e.enc {
	case Hex, HexUpper:
		sum, err = DecodeHex(s)
	default:
		sum, err = DecodeBase64(s)
	}
	if err != nil {
		return nil, err
	}
	if len(sum) != e.Size() {
		return nil, fmt.Errorf("digest length %d, want %d for %s", len(sum), e.Size(), e.alg)
	}
	return sum, nil
}

func EncodeHex(sum []byte) string { return hex.EncodeToString(sum) }

// DecodeHex accepts either case.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex digest: %w", err)
	}
	return b, nil
}

func EncodeBase64(sum []byte) string { return base64.StdEncoding.EncodeToString(sum) }

func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 digest: %w", err)
	}
	return b, nil
}
