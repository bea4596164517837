package encryption

import (
	"bytes"
	"fmt"
	"io"

	"dcat-go/internal/dcat"
)

// testHeader marks data sealed by TestEncryptor.
var testHeader = []byte("DCATSEAL")

// TestEncryptor prepends a fixed header instead of encrypting, so sealed
// output differs from plaintext without any key material.
type TestEncryptor struct {
	setupCalled bool
}

var _ dcat.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Seal(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (dcat.Opener, error) {
	return testOpener{}, nil
}

func (e *TestEncryptor) Enabled() bool {
	return true
}

type testOpener struct{}

func (testOpener) Open(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test seal header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
