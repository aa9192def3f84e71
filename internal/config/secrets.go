package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// encPrefix marks configuration values stored encrypted. The remainder of
// the value is base64(nonce || AES-GCM ciphertext).
const encPrefix = "enc:"

// secretKeyEnv names the environment variable holding the passphrase the
// configuration values were encrypted with.
const secretKeyEnv = "DOI_SERVER_SECRET_KEY"

// decryptSecrets walks the configuration and replaces every "enc:" value
// with its plaintext. Credentials never sit decrypted on disk; they are
// decrypted once, at load time.
func decryptSecrets(c *Config) error {
	var encrypted []*string

	for _, options := range c.Plugins.Options {
		for key, value := range options {
			if strings.HasPrefix(value, encPrefix) {
				// map entries aren't addressable, decrypt in place below
				plain, err := decryptValue(value)
				if err != nil {
					return err
				}

				options[key] = plain
			}
		}
	}

	if strings.HasPrefix(c.DataCite.Password, encPrefix) {
		encrypted = append(encrypted, &c.DataCite.Password)
	}

	if strings.HasPrefix(c.Security.TokenSecret, encPrefix) {
		encrypted = append(encrypted, &c.Security.TokenSecret)
	}

	for _, field := range encrypted {
		plain, err := decryptValue(*field)
		if err != nil {
			return err
		}

		*field = plain
	}

	return nil
}

// decryptValue decrypts one "enc:" value with the key from the
// environment.
func decryptValue(value string) (string, error) {
	passphrase := os.Getenv(secretKeyEnv)
	if passphrase == "" {
		return "", ErrMissingSecretKey
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", errors.Wrap(ErrBadCiphertext, err.Error())
	}

	aead, err := newAEAD(passphrase)
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", ErrBadCiphertext
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(ErrBadCiphertext, err.Error())
	}

	return string(plain), nil
}

// EncryptValue produces an "enc:" value for the configuration file. Used
// by operators through the config command and by tests.
func EncryptValue(passphrase, plaintext string) (string, error) {
	aead, err := newAEAD(passphrase)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// newAEAD derives an AES-256-GCM cipher from the passphrase.
func newAEAD(passphrase string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
