package persist

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/awnumar/memguard"

	"southwinds.dev/keyslot/internal/crypto"
	"southwinds.dev/keyslot/internal/misc"
)

// sealer encrypts record envelopes with a key derived once per store from a
// passphrase and a store-scoped salt. The derived key lives in a memguard
// enclave and is only opened for the duration of a seal/open call.
type sealer struct {
	keyEnclave *memguard.Enclave
}

// newSealer derives the sealing key from the passphrase and salt
func newSealer(passphrase string, salt []byte) (*sealer, error) {
	saltEnclave := memguard.NewEnclave(salt)

	keyBuffer, err := crypto.DeriveKey([]byte(passphrase), saltEnclave)
	if err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}

	// Seal moves the buffer contents into the enclave and destroys the buffer
	return &sealer{keyEnclave: keyBuffer.Seal()}, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	keyBuffer, err := s.keyEnclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open sealing key: %w", err)
	}
	defer keyBuffer.Destroy()

	return crypto.EncryptValue(plain, keyBuffer.Bytes())
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	keyBuffer, err := s.keyEnclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open sealing key: %w", err)
	}
	defer keyBuffer.Destroy()

	return crypto.DecryptValue(sealed, keyBuffer.Bytes())
}

// newSealingSalt generates a fresh random salt for key derivation
func newSealingSalt() ([]byte, error) {
	salt := make([]byte, misc.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate sealing salt: %w", err)
	}
	return salt, nil
}

// encodeRecord serializes a record, stamping its checksum and envelope
// version, and seals the result when a sealer is configured.
func encodeRecord(rec *Record, s *sealer) ([]byte, error) {
	envelope := *rec
	envelope.Version = misc.RecordVersion
	envelope.Checksum = crypto.CalculateChecksum(rec.Material)

	data, err := json.Marshal(&envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize key record: %w", err)
	}

	if s == nil {
		return data, nil
	}
	sealed, err := s.seal(data)
	memguard.WipeBytes(data)
	return sealed, err
}

// decodeRecord reverses encodeRecord and verifies the material checksum
func decodeRecord(data []byte, s *sealer, ref KeyRef) (*Record, error) {
	if s != nil {
		plain, err := s.open(data)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal key record %s: %w", ref, err)
		}
		defer memguard.WipeBytes(plain)
		data = plain
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse key record %s: %w", ref, err)
	}

	if actual := crypto.CalculateChecksum(rec.Material); actual != rec.Checksum {
		memguard.WipeBytes(rec.Material)
		return nil, IntegrityError{Ref: ref, Expected: rec.Checksum, Actual: actual}
	}

	return &rec, nil
}

// parseObjectName recovers a KeyRef from a record file/object name
func parseObjectName(name string) (KeyRef, bool) {
	name = strings.TrimSuffix(name, ".key")
	parts := strings.Split(name, "-")
	if len(parts) != 2 || len(parts[0]) != 8 || len(parts[1]) != 8 {
		return KeyRef{}, false
	}

	owner, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return KeyRef{}, false
	}
	id, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return KeyRef{}, false
	}

	return KeyRef{Owner: int32(uint32(owner)), ID: uint32(id)}, true
}
