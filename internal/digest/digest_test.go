package digest

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		e, err := New("", "")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if e.Algorithm() != SHA1 || e.Encoding() != Base64 {
			t.Errorf("New() = %s/%s, want sha1/base64", e.Algorithm(), e.Encoding())
		}
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := New("md4", Hex)
		if !errors.Is(err, ErrUnknownAlgorithm) {
			t.Errorf("New() error = %v, want ErrUnknownAlgorithm", err)
		}
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := New(SHA256, "base32")
		if !errors.Is(err, ErrUnknownEncoding) {
			t.Errorf("New() error = %v, want ErrUnknownEncoding", err)
		}
	})
}

func TestEngine_Digest(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		enc  Encoding
		in   string
		want string
	}{
		{alg: SHA1, enc: Hex, in: "abc", want: "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{alg: SHA1, enc: HexUpper, in: "abc", want: "A9993E364706816ABA3E25717850C26C9CD0D89D"},
		{alg: SHA1, enc: Base64, in: "abc", want: "qZk+NkcGgWq6PiVxeFDCbJzQ2J0="},
		{alg: SHA1, enc: Base64, in: "", want: "2jmj7l5rSw0yVb/vlWAYkK/YBwk="},
		{alg: SHA256, enc: Hex, in: "abc", want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{alg: BLAKE3, enc: Hex, in: "", want: "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}

	for _, tt := range tests {
		t.Run(string(tt.alg)+"/"+string(tt.enc), func(t *testing.T) {
			e, err := New(tt.alg, tt.enc)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got, err := e.Digest(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("Digest() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Digest(%q) = %s, want %s", tt.in, got, tt.want)
			}
			if streamed := e.Encode(e.SumBytes([]byte(tt.in))); streamed != got {
				t.Errorf("SumBytes() = %s, want %s", streamed, got)
			}
		})
	}
}

func TestEngine_RoundTrip(t *testing.T) {
	payload := []byte("catalog entry payload")
	for _, alg := range []Algorithm{SHA1, SHA256, BLAKE3} {
		for _, enc := range []Encoding{Base64, Hex, HexUpper} {
			e, err := New(alg, enc)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			sum := e.SumBytes(payload)
			decoded, err := e.Decode(e.Encode(sum))
			if err != nil {
				t.Fatalf("%s/%s Decode() error = %v", alg, enc, err)
			}
			if !bytes.Equal(decoded, sum) {
				t.Errorf("%s/%s Decode(Encode(x)) = %x, want %x", alg, enc, decoded, sum)
			}
		}
	}
}

func TestEngine_DecodeRejectsWrongLength(t *testing.T) {
	e, err := New(SHA256, Hex)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := e.Decode("abcd"); err == nil {
		t.Error("Decode() expected length error, got nil")
	}
	if _, err := e.Decode("zz"); err == nil {
		t.Error("Decode() expected hex error, got nil")
	}
}

func TestHexBase64Helpers(t *testing.T) {
	raw := []byte{0x00, 0xff, 0x10, 0xab}

	back, err := DecodeHex(EncodeHex(raw))
	if err != nil || !bytes.Equal(back, raw) {
		t.Errorf("DecodeHex(EncodeHex(x)) = %x, %v", back, err)
	}
	back, err = DecodeHex("00FF10AB")
	if err != nil || !bytes.Equal(back, raw) {
		t.Errorf("DecodeHex(upper) = %x, %v", back, err)
	}
	back, err = DecodeBase64(EncodeBase64(raw))
	if err != nil || !bytes.Equal(back, raw) {
		t.Errorf("DecodeBase64(EncodeBase64(x)) = %x, %v", back, err)
	}
	if _, err := DecodeBase64("!!"); err == nil {
		t.Error("DecodeBase64(invalid) expected error")
	}
}
