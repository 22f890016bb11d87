package cryptox

import (
	"strings"
	"testing"

	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, seed string) []byte {
	t.Helper()
	return DeriveKey([]byte(seed), []byte("0123456789abcdef"))
}

func strptr(s string) *string { return &s }

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t, "passphrase")

	tests := []struct {
		name  string
		value string
	}{
		{"short", "test"},
		{"empty string", ""},
		{"unicode", "держись — one day at a time ✊"},
		{"multiline", "line one\nline two\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := EncryptField(key, strptr(tt.value))
			require.NoError(t, err)
			require.NotNil(t, env)
			assert.True(t, strings.HasPrefix(*env, "sw1:"))
			assert.NotContains(t, *env, tt.value)

			got, err := DecryptField(key, env)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.value, *got)
		})
	}
}

func TestEncryptField_NilRoundTripsAsNil(t *testing.T) {
	key := testKey(t, "passphrase")

	env, err := EncryptField(key, nil)
	require.NoError(t, err)
	assert.Nil(t, env)

	got, err := DecryptField(key, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEncryptField_NonceIsFresh(t *testing.T) {
	key := testKey(t, "passphrase")

	a, err := EncryptField(key, strptr("same plaintext"))
	require.NoError(t, err)
	b, err := EncryptField(key, strptr("same plaintext"))
	require.NoError(t, err)
	assert.NotEqual(t, *a, *b)
}

func TestDecryptField_WrongKeyIsKeyMismatch(t *testing.T) {
	env, err := EncryptField(testKey(t, "right"), strptr("secret"))
	require.NoError(t, err)

	got, err := DecryptField(testKey(t, "wrong"), env)
	require.ErrorIs(t, err, common.ErrKeyMismatch)
	assert.Nil(t, got)
}

func TestDecryptField_TamperedIsKeyMismatch(t *testing.T) {
	key := testKey(t, "passphrase")
	env, err := EncryptField(key, strptr("secret"))
	require.NoError(t, err)

	// Flip a ciphertext character; the envelope still parses.
	tampered := *env
	last := tampered[len(tampered)-1]
	repl := byte('A')
	if last == 'A' {
		repl = 'B'
	}
	tampered = tampered[:len(tampered)-1] + string(repl)

	_, err = DecryptField(key, &tampered)
	require.ErrorIs(t, err, common.ErrKeyMismatch)
}

func TestDecryptField_MalformedIsCorrupt(t *testing.T) {
	key := testKey(t, "passphrase")

	tests := []struct {
		name     string
		envelope string
	}{
		{"not an envelope", "plaintext leftover"},
		{"wrong version", "v9:YWJj:ZGVm"},
		{"missing part", "sw1:YWJj"},
		{"bad base64", "sw1:!!!:ZGVm"},
		{"short nonce", "sw1:YWJj:ZGVm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptField(key, &tt.envelope)
			require.ErrorIs(t, err, common.ErrCiphertextCorrupt)
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("fedcba9876543210")
	k1 := DeriveKey([]byte("pw"), salt)
	k2 := DeriveKey([]byte("pw"), salt)
	k3 := DeriveKey([]byte("other"), salt)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, KeySize)
}

func TestMakeVerifier_DiffersFromKey(t *testing.T) {
	key := testKey(t, "pw")
	v := MakeVerifier(key)
	assert.Len(t, v, 32)
	assert.NotEqual(t, key, v)
}
