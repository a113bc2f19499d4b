package auth

import (
	"fmt"
	"strings"
)

// SecretPrefix marks an encrypted value in the configuration file.
const SecretPrefix = "enc:"

// Reveal returns the plain value of a configured secret. Values without the
// "enc:" prefix are returned unchanged. It satisfies source.Reveal.
func (s *Service) Reveal(value string) (string, error) {
	ciphertext, ok := strings.CutPrefix(value, SecretPrefix)
	if !ok {
		return value, nil
	}

	plaintext, err := s.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

// Seal encrypts a secret into its "enc:" configuration form.
func (s *Service) Seal(value string) (string, error) {
	ciphertext, err := s.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return SecretPrefix + ciphertext, nil
}
