package encryption

import (
	"fmt"

	"dcat-go/internal/config"
	"dcat-go/internal/dcat"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (dcat.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NoneEncryptor{}, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
