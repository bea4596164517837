package dcat

import "io"

// Encryptor seals catalog snapshots before they leave the machine.
// Sealing needs only the public key; opening needs the passphrase.
type Encryptor interface {
	// Setup generates the key pair, protecting the private half with
	// passphrase.
	Setup(passphrase string) error

	// Seal encrypts r into w.
	Seal(r io.Reader, w io.Writer) error

	// Unlock opens the private key for the rest of the session.
	Unlock(passphrase string) (Opener, error)

	// Enabled reports whether snapshots should be sealed at all.
	Enabled() bool
}

// Opener decrypts snapshots sealed by an Encryptor.
type Opener interface {
	Open(r io.Reader, w io.Writer) error
}
