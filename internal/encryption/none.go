package encryption

import (
	"fmt"
	"io"

	"dcat-go/internal/dcat"
)

// NoneEncryptor leaves snapshots in plaintext.
type NoneEncryptor struct{}

var _ dcat.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error {
	return fmt.Errorf("encryption is disabled; set encryption.type to \"age\" first")
}

func (NoneEncryptor) Seal(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (NoneEncryptor) Unlock(string) (dcat.Opener, error) {
	return plainOpener{}, nil
}

func (NoneEncryptor) Enabled() bool {
	return false
}

type plainOpener struct{}

func (plainOpener) Open(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}
