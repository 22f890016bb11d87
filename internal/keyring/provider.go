// Package keyring supplies the per-session symmetric encryption key used for
// field-level encryption. Key material lives only in memory for the duration
// of a session; the backing keystore holds the per-user salt, never the key.
//
// All read paths fail closed: when the keystore is locked, the session is not
// initialized, or the session has expired, GetKey returns
// common.ErrKeyUnavailable. Callers must treat that as "no data available",
// never as empty data.
package keyring

import "context"

// Provider is the single capability interface over platform key storage.
// The concrete implementation is selected at process start; business logic
// never branches on platform.
type Provider interface {
	// GetKey returns the symmetric key scoped to the given user. It fails
	// closed with common.ErrKeyUnavailable when no usable key exists; it
	// never returns a default or zero key.
	GetKey(ctx context.Context, userID string) ([]byte, error)

	// InitializeWithSession binds the provider to an authenticated session.
	// The session token identifies the user and bounds the key lifetime;
	// the passphrase is consumed (wiped) by the call.
	InitializeWithSession(token string, passphrase []byte) error

	// Clear irreversibly destroys cached key material. Called on logout,
	// after the sync engine has been stopped.
	Clear()
}

// Keystore abstracts the platform-protected store backing a Provider.
// Implementations hold only derivation salts; key material never leaves the
// Provider boundary unencrypted.
type Keystore interface {
	// Salt returns the stored derivation salt for the user, creating and
	// persisting a fresh one on first use.
	Salt(userID string) ([]byte, error)

	// Wipe removes stored material for the user.
	Wipe(userID string) error
}
