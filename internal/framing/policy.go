package framing

import "fmt"

// DefaultMinSize is the smallest payload Pack will try to compress.
const DefaultMinSize = 1024

// Kind records how a stored payload was encoded.
type Kind string

const (
	KindNone   Kind = "none"
	KindFramed Kind = "zlib"
	KindRaw    Kind = "deflate"
)

func (k Kind) String() string { return string(k) }

// ParseKind parses a stored or configured kind. The empty string is KindNone.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindNone, "":
		return KindNone, nil
	case KindFramed:
		return KindFramed, nil
	case KindRaw:
		return KindRaw, nil
	default:
		return "", fmt.Errorf("unknown framing: %q", name)
	}
}

// Policy decides whether a payload is stored compressed.
type Policy struct {
	MinSize int
	Kind    Kind
	Level   Level
}

// DefaultPolicy compresses payloads of 1 KiB and more into framed
// containers at the default level.
func DefaultPolicy() Policy {
	return Policy{MinSize: DefaultMinSize, Kind: KindFramed, Level: LevelDefault}
}

// Pack returns the bytes to store and how they were encoded. Payloads
// below MinSize are returned untouched, as are payloads whose encoded form
// is not strictly smaller.
func (p Policy) Pack(data []byte) ([]byte, Kind, error) {
	if len(data) == 0 || len(data) < p.MinSize || p.Kind == KindNone || p.Kind == "" {
		return data, KindNone, nil
	}

	var (
		out []byte
		err error
	)
	switch p.Kind {
	case KindFramed:
		out, err = Encode(data, p.Level)
	case KindRaw:
		out, err = EncodeRaw(data, p.Level)
	default:
		return nil, "", fmt.Errorf("%w: framing %q", ErrInvalidArgument, p.Kind)
	}
	if err != nil {
		return nil, "", err
	}
	if len(out) >= len(data) {
		return data, KindNone, nil
	}
	return out, p.Kind, nil
}

// Unpack restores a payload stored by Pack. A payload whose length equals
// nominal is stored raw whatever kind says; any other payload is decoded
// with kind and must inflate to exactly nominal bytes.
func Unpack(payload []byte, nominal int64, kind Kind) ([]byte, error) {
	if nominal < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidArgument, nominal)
	}
	if int64(len(payload)) == nominal {
		return payload, nil
	}

	var (
		out []byte
		err error
	)
	switch kind {
	case KindFramed:
		out, err = Decode(payload)
	case KindRaw:
		out, err = DecodeRaw(payload)
	default:
		return nil, fmt.Errorf("%w: %d stored bytes for nominal %d without a framing", ErrIntegrity, len(payload), nominal)
	}
	if err != nil {
		return nil, err
	}
	if int64(len(out)) != nominal {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrIntegrity, len(out), nominal)
	}
	return out, nil
}
