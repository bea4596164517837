package encryption

import (
	"bytes"
	"testing"

	"dcat-go/internal/config"
)

func TestTestEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()
	if err := e.Setup("any-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.setupCalled {
		t.Error("Setup() did not record that it was called")
	}
	if !e.Enabled() {
		t.Error("Enabled() = false, want true")
	}
}

func TestTestEncryptor_SealOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewTestEncryptor()

			var sealed bytes.Buffer
			if err := e.Seal(bytes.NewReader(tt.input), &sealed); err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if !bytes.HasPrefix(sealed.Bytes(), testHeader) {
				t.Error("sealed output does not start with test header")
			}

			opener, err := e.Unlock("any")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var opened bytes.Buffer
			if err := opener.Open(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), tt.input) {
				t.Errorf("Open() = %q, want %q", opened.Bytes(), tt.input)
			}
		})
	}
}

func TestTestOpener_BadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{"invalid header", []byte("NOT_VALID_HEADER_data")},
		{"truncated header", []byte("DC")},
		{"empty input", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := (testOpener{}).Open(bytes.NewReader(tt.input), &bytes.Buffer{}); err == nil {
				t.Error("Open() error = nil, want error")
			}
		})
	}
}

func TestNoneEncryptor(t *testing.T) {
	t.Parallel()
	var e NoneEncryptor

	if e.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if err := e.Setup("pass"); err == nil {
		t.Error("Setup() error = nil, want error")
	}

	var sealed bytes.Buffer
	if err := e.Seal(bytes.NewReader([]byte("plain")), &sealed); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if sealed.String() != "plain" {
		t.Errorf("Seal() = %q, want %q", sealed.String(), "plain")
	}

	opener, err := e.Unlock("")
	if err != nil {
		t.Fatal(err)
	}
	var opened bytes.Buffer
	if err := opener.Open(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
		t.Fatal(err)
	}
	if opened.String() != "plain" {
		t.Errorf("Open() = %q, want %q", opened.String(), "plain")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		typ         string
		wantErr     bool
		wantEnabled bool
	}{
		{"", false, false},
		{"none", false, false},
		{"age", false, true},
		{"test", false, true},
		{"rot13", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig(%q) error = %v, wantErr %v", tt.typ, err, tt.wantErr)
			}
			if err == nil && got.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", got.Enabled(), tt.wantEnabled)
			}
		})
	}
}
