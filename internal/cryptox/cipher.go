// Package cryptox implements field-level encryption for sensitive record
// attributes. Individual values are sealed with AES-256-GCM and stored as
// text envelopes, so ciphertext fits ordinary TEXT columns and non-sensitive
// columns stay queryable in plaintext.
//
// Envelope format:
//
//	sw1:<base64url nonce>:<base64url ciphertext>
//
// The scheme is authenticated, so tampering or decryption with a wrong or
// rotated key is detected and reported as common.ErrKeyMismatch rather than
// silently producing garbage. A malformed envelope is reported as
// common.ErrCiphertextCorrupt.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/stepwise-app/stepwise/internal/common"
	"golang.org/x/crypto/argon2"
)

const envelopeVersion = "sw1"

// KeySize is the required symmetric key length (AES-256).
const KeySize = 32

// DeriveKey derives a 32-byte symmetric key from a passphrase and salt using
// argon2id. The same (passphrase, salt) pair always yields the same key.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a one-way fingerprint of the key, safe to persist for
// offline passphrase verification.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// EncryptField seals a single sensitive value into a text envelope.
//
// A nil plaintext round-trips as nil: "no value" is distinct from the
// encryption of an empty string. A fresh random nonce is generated per call.
func EncryptField(key []byte, plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce, err := common.RandBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}

	ct := aead.Seal(nil, nonce, []byte(*plaintext), nil)

	enc := base64.RawURLEncoding
	envelope := envelopeVersion + ":" + enc.EncodeToString(nonce) + ":" + enc.EncodeToString(ct)
	return &envelope, nil
}

// DecryptField opens an envelope produced by EncryptField.
//
// A nil envelope round-trips as nil. Failures are classified:
//   - common.ErrCiphertextCorrupt: the envelope is malformed (wrong version,
//     bad base64, truncated nonce).
//   - common.ErrKeyMismatch: the envelope is intact but authentication
//     failed, i.e. the key is wrong or has been rotated.
func DecryptField(key []byte, envelope *string) (*string, error) {
	if envelope == nil {
		return nil, nil
	}

	nonce, ct, err := parseEnvelope(*envelope)
	if err != nil {
		return nil, err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyMismatch, err)
	}

	s := string(pt)
	return &s, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", common.ErrKeyUnavailable, KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func parseEnvelope(s string) (nonce, ct []byte, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != envelopeVersion {
		return nil, nil, fmt.Errorf("%w: bad envelope format", common.ErrCiphertextCorrupt)
	}

	enc := base64.RawURLEncoding
	nonce, err = enc.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad nonce encoding", common.ErrCiphertextCorrupt)
	}
	ct, err = enc.DecodeString(parts[2])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad ciphertext encoding", common.ErrCiphertextCorrupt)
	}
	if len(nonce) != 12 {
		return nil, nil, fmt.Errorf("%w: bad nonce size %d", common.ErrCiphertextCorrupt, len(nonce))
	}
	return nonce, ct, nil
}
