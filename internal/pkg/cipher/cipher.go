// Package cipher encrypts stored identifiers with AES-256-CBC under a fixed
// key and IV. Encryption is deliberately deterministic: the same plaintext
// always yields the same ciphertext, so ciphertext can be used as a Redis
// hash field. The trade-off is that equality and frequency of stored values
// are observable; this is accepted and must not be "fixed" with random IVs
// without redesigning the hash lookup scheme.
package cipher

import (
	"bytes"
	aescipher "crypto/aes"
	cryptocipher "crypto/cipher"
	"encoding/hex"
	"fmt"
)

// DecryptError reports ciphertext that could not be decrypted: malformed hex,
// a length that is not a multiple of the block size, bad padding, or data
// produced under a different key/IV. The salt is not a MAC; authentication is
// not provided.
type DecryptError struct {
	Reason string
}

func (e *DecryptError) Error() string {
	return "cipher: decrypt failed: " + e.Reason
}

// Cipher performs deterministic AES-256-CBC encryption with a constant salt
// prepended to every plaintext.
type Cipher struct {
	key  []byte
	iv   []byte
	salt string
}

// New builds a Cipher from hex-encoded key and IV. The key must decode to 32
// bytes and the IV to 16 bytes.
func New(keyHex, ivHex, salt string) (*Cipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("cipher: invalid key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher: key must be 32 bytes, got %d", len(key))
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("cipher: invalid iv: %w", err)
	}
	if len(iv) != aescipher.BlockSize {
		return nil, fmt.Errorf("cipher: iv must be %d bytes, got %d", aescipher.BlockSize, len(iv))
	}
	return &Cipher{key: key, iv: iv, salt: salt}, nil
}

// Encrypt returns the hex-encoded AES-256-CBC encryption of salt+plaintext.
func (c *Cipher) Encrypt(plaintext string) string {
	block, err := aescipher.NewCipher(c.key)
	if err != nil {
		// key length is validated in New
		panic(err)
	}

	padded := pkcs7Pad([]byte(c.salt+plaintext), aescipher.BlockSize)
	out := make([]byte, len(padded))
	cryptocipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)

	return hex.EncodeToString(out)
}

// Decrypt reverses Encrypt, stripping the salt prefix. Returns a
// *DecryptError when the ciphertext is malformed or was produced under a
// different key/IV.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	data, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptError{Reason: "not valid hex"}
	}
	if len(data) == 0 || len(data)%aescipher.BlockSize != 0 {
		return "", &DecryptError{Reason: "length is not a multiple of the block size"}
	}

	block, err := aescipher.NewCipher(c.key)
	if err != nil {
		panic(err)
	}

	out := make([]byte, len(data))
	cryptocipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, data)

	unpadded, ok := pkcs7Unpad(out, aescipher.BlockSize)
	if !ok {
		return "", &DecryptError{Reason: "bad padding"}
	}
	if !bytes.HasPrefix(unpadded, []byte(c.salt)) {
		return "", &DecryptError{Reason: "salt prefix missing"}
	}
	return string(unpadded[len(c.salt):]), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
