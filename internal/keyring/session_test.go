package keyring

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeystore struct {
	salts map[string][]byte
	err   error
}

func (f *fakeKeystore) Salt(userID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.salts[userID]; ok {
		return s, nil
	}
	s := []byte("0123456789abcdef")
	f.salts[userID] = s
	return s, nil
}

func (f *fakeKeystore) Wipe(userID string) error {
	delete(f.salts, userID)
	return nil
}

func newFakeKeystore() *fakeKeystore {
	return &fakeKeystore{salts: map[string][]byte{}}
}

func sessionToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: userID}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestSessionProvider_FailsClosedBeforeInit(t *testing.T) {
	p := NewSessionProvider(newFakeKeystore())

	key, err := p.GetKey(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrKeyUnavailable)
	assert.Nil(t, key)
}

func TestSessionProvider_InitializeAndGetKey(t *testing.T) {
	p := NewSessionProvider(newFakeKeystore())
	token := sessionToken(t, "u1", time.Now().Add(time.Hour))

	require.NoError(t, p.InitializeWithSession(token, []byte("passphrase")))

	k1, err := p.GetKey(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, k1, 32)

	// Same session, stable key.
	k2, err := p.GetKey(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	// Returned slices are copies; wiping one must not affect the cache.
	common.WipeByteArray(k1)
	k3, err := p.GetKey(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, k2, k3)
}

func TestSessionProvider_WipesPassphrase(t *testing.T) {
	p := NewSessionProvider(newFakeKeystore())
	token := sessionToken(t, "u1", time.Now().Add(time.Hour))

	passphrase := []byte("passphrase")
	require.NoError(t, p.InitializeWithSession(token, passphrase))
	assert.Equal(t, make([]byte, len(passphrase)), passphrase)
}

func TestSessionProvider_WrongUserFailsClosed(t *testing.T) {
	p := NewSessionProvider(newFakeKeystore())
	token := sessionToken(t, "u1", time.Now().Add(time.Hour))
	require.NoError(t, p.InitializeWithSession(token, []byte("pw")))

	_, err := p.GetKey(context.Background(), "someone-else")
	require.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestSessionProvider_ExpiredSessionFailsClosed(t *testing.T) {
	p := NewSessionProvider(newFakeKeystore())
	token := sessionToken(t, "u1", time.Now().Add(time.Hour))
	require.NoError(t, p.InitializeWithSession(token, []byte("pw")))

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := p.GetKey(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestSessionProvider_Clear(t *testing.T) {
	p := NewSessionProvider(newFakeKeystore())
	token := sessionToken(t, "u1", time.Now().Add(time.Hour))
	require.NoError(t, p.InitializeWithSession(token, []byte("pw")))

	p.Clear()

	_, err := p.GetKey(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestSessionProvider_KeystoreUnavailableFailsClosed(t *testing.T) {
	ks := newFakeKeystore()
	ks.err = assert.AnError
	p := NewSessionProvider(ks)
	token := sessionToken(t, "u1", time.Now().Add(time.Hour))

	err := p.InitializeWithSession(token, []byte("pw"))
	require.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestSessionProvider_SameUserSameKeyAcrossSessions(t *testing.T) {
	ks := newFakeKeystore()

	p1 := NewSessionProvider(ks)
	require.NoError(t, p1.InitializeWithSession(sessionToken(t, "u1", time.Now().Add(time.Hour)), []byte("pw")))
	k1, err := p1.GetKey(context.Background(), "u1")
	require.NoError(t, err)

	p2 := NewSessionProvider(ks)
	require.NoError(t, p2.InitializeWithSession(sessionToken(t, "u1", time.Now().Add(time.Hour)), []byte("pw")))
	k2, err := p2.GetKey(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
}

func TestFileKeystore_SaltStableAndWipable(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewFileKeystore(dir)
	require.NoError(t, err)

	s1, err := ks.Salt("u1")
	require.NoError(t, err)
	require.Len(t, s1, saltSize)

	s2, err := ks.Salt("u1")
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	other, err := ks.Salt("u2")
	require.NoError(t, err)
	assert.NotEqual(t, s1, other)

	require.NoError(t, ks.Wipe("u1"))
	s3, err := ks.Salt("u1")
	require.NoError(t, err)
	assert.NotEqual(t, s1, s3)

	require.NoError(t, ks.Wipe("nope"))
}
