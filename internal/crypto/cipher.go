// Package crypto implements the at-rest transform applied to message content
// and select profile fields before persistence. The wire format is
// "hex(iv):hex(ciphertext)" with AES-256-CBC and PKCS#7 padding, so blobs
// written by earlier deployments of the system stay readable.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const keySize = 32

type Cipher struct {
	key []byte
}

// New returns a Cipher for a 32-byte key.
func New(key string) (*Cipher, error) {
	if len(key) != keySize {
		return nil, errors.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	return &Cipher{key: []byte(key)}, nil
}

// Seal encrypts plaintext with a fresh random IV. Empty input is returned
// unchanged so optional fields stay empty rather than becoming ciphertext.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Wrap(err, "creating cipher")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "generating iv")
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Open decrypts a blob produced by Seal. Malformed or foreign input is
// returned unchanged: a row written before encryption was enabled must not
// come back corrupted.
func (c *Cipher) Open(blob string) string {
	if blob == "" {
		return ""
	}

	idx := strings.IndexByte(blob, ':')
	if idx < 0 {
		return blob
	}

	iv, err := hex.DecodeString(blob[:idx])
	if err != nil || len(iv) != aes.BlockSize {
		return blob
	}

	ciphertext, err := hex.DecodeString(blob[idx+1:])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return blob
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return blob
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	unpadded, ok := unpad(out)
	if !ok {
		return blob
	}
	return string(unpadded)
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
