package encryption

import (
	"fmt"

	"doiver/internal/config"
	"doiver/internal/doiver"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Returns (nil, nil) for type "none": archived bodies are stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (doiver.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
