package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"southwinds.dev/keyslot/internal/misc"
)

// EncryptWithPassphrase encrypts data using a passphrase with PBKDF2 + ChaCha20-Poly1305.
// The output is self-contained: salt + nonce + ciphertext.
func EncryptWithPassphrase(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, 100000, 32, sha256.New)
	defer memguard.WipeBytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	result := make([]byte, len(salt)+len(nonce)+len(ciphertext))
	copy(result[:len(salt)], salt)
	copy(result[len(salt):len(salt)+len(nonce)], nonce)
	copy(result[len(salt)+len(nonce):], ciphertext)

	return result, nil
}

// DecryptWithPassphrase decrypts data produced by EncryptWithPassphrase
func DecryptWithPassphrase(encryptedData []byte, passphrase string) ([]byte, error) {
	if len(encryptedData) < 32+12 { // salt + nonce minimum
		return nil, errors.New("encrypted data too short")
	}

	salt := encryptedData[:32]
	nonce := encryptedData[32:44] // ChaCha20-Poly1305 nonce is 12 bytes
	ciphertext := encryptedData[44:]

	key := pbkdf2.Key([]byte(passphrase), salt, 100000, 32, sha256.New)
	defer memguard.WipeBytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// CalculateChecksum calculates SHA-256 checksum of data
func CalculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// DeriveKey derives a sealing key from a passphrase and a protected salt using Argon2id.
// The derived key is returned inside a locked buffer; the caller owns its destruction.
func DeriveKey(passphrase []byte, saltEnclave *memguard.Enclave) (*memguard.LockedBuffer, error) {
	saltBuffer, err := saltEnclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open salt enclave: %w", err)
	}
	defer saltBuffer.Destroy()

	// Work on a private copy of the salt bytes
	saltBytes := make([]byte, len(saltBuffer.Bytes()))
	copy(saltBytes, saltBuffer.Bytes())
	defer memguard.WipeBytes(saltBytes)

	derivedKey := argon2.IDKey(
		passphrase,
		saltBytes,
		misc.ArgonTime,
		misc.ArgonMemory,
		misc.ArgonThreads,
		misc.ArgonKeyLen,
	)

	protectedKey := memguard.NewBufferFromBytes(derivedKey)
	memguard.WipeBytes(derivedKey)

	return protectedKey, nil
}

// EncryptValue encrypts a value with a raw key using ChaCha20-Poly1305.
// The output is nonce + ciphertext.
func EncryptValue(value, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, value, nil)

	encrypted := make([]byte, len(nonce)+len(ciphertext))
	copy(encrypted[:len(nonce)], nonce)
	copy(encrypted[len(nonce):], ciphertext)

	return encrypted, nil
}

// DecryptValue decrypts a value produced by EncryptValue
func DecryptValue(encryptedData, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(encryptedData) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("encrypted data too short")
	}

	nonceSize := aead.NonceSize()
	nonce := encryptedData[:nonceSize]
	ciphertext := encryptedData[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	return plaintext, nil
}
