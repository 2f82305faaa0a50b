package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptSecret seals plaintext with NaCl secretbox. The passphrase is
// stretched with SHA-256 into the 32-byte box key; the random nonce is
// prepended to the ciphertext and the result is base64 encoded.
func EncryptSecret(plaintext []byte, passphrase string) (string, error) {
	key := sha256.Sum256([]byte(passphrase))

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(encoded, passphrase string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secret: %w", err)
	}
	if len(sealed) < 24 {
		return nil, fmt.Errorf("sealed secret too short")
	}

	key := sha256.Sum256([]byte(passphrase))

	var nonce [24]byte
	copy(nonce[:], sealed[:24])

	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("failed to open sealed secret")
	}
	return plaintext, nil
}
