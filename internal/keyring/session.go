package keyring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/cryptox"
)

// SessionProvider derives a stable per-user key from the login passphrase and
// the keystore salt, and caches it in memory until Clear or session expiry.
//
// The session token is the JWT issued at login. Its subject names the user
// the key is scoped to and its expiry bounds the cache lifetime. The token
// signature is the server's business; client-side we only read claims.
type SessionProvider struct {
	store Keystore
	now   func() time.Time

	mu        sync.RWMutex
	userID    string
	key       []byte
	expiresAt time.Time
}

// NewSessionProvider returns an uninitialized provider. GetKey fails closed
// until InitializeWithSession has been called.
func NewSessionProvider(store Keystore) *SessionProvider {
	return &SessionProvider{store: store, now: time.Now}
}

// InitializeWithSession parses the session token, loads the user's salt from
// the keystore and derives the session key. The passphrase is wiped before
// returning, on success and failure alike.
func (p *SessionProvider) InitializeWithSession(token string, passphrase []byte) error {
	defer common.WipeByteArray(passphrase)

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("parse session token: %w", err)
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: session token has no subject", common.ErrKeyUnavailable)
	}

	salt, err := p.store.Salt(claims.Subject)
	if err != nil {
		return fmt.Errorf("%w: keystore: %v", common.ErrKeyUnavailable, err)
	}

	key := cryptox.DeriveKey(passphrase, salt)

	p.mu.Lock()
	defer p.mu.Unlock()
	common.WipeByteArray(p.key)
	p.userID = claims.Subject
	p.key = key
	if claims.ExpiresAt != nil {
		p.expiresAt = claims.ExpiresAt.Time
	} else {
		p.expiresAt = time.Time{}
	}
	return nil
}

// GetKey returns a copy of the cached session key for userID.
func (p *SessionProvider) GetKey(ctx context.Context, userID string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.key == nil {
		return nil, fmt.Errorf("%w: no session", common.ErrKeyUnavailable)
	}
	if userID != p.userID {
		return nil, fmt.Errorf("%w: key is scoped to another user", common.ErrKeyUnavailable)
	}
	if !p.expiresAt.IsZero() && p.now().After(p.expiresAt) {
		return nil, fmt.Errorf("%w: session expired", common.ErrKeyUnavailable)
	}

	// Copy so callers can never wipe or mutate the cached material.
	key := make([]byte, len(p.key))
	copy(key, p.key)
	return key, nil
}

// Clear wipes the cached key. Subsequent GetKey calls fail closed until the
// provider is re-initialized with a new session.
func (p *SessionProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	common.WipeByteArray(p.key)
	p.key = nil
	p.userID = ""
	p.expiresAt = time.Time{}
}
