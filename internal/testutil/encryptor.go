package testutil

import (
	"dcat-go/internal/encryption"
)

// NewTestEncryptor returns an encryptor that marks instead of encrypting.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
