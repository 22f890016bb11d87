package cli

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/cryptox"
)

const sessionTTL = 24 * time.Hour

// Login authenticates the user against the local verifier and unlocks the
// session key. It works fully offline: the first login on a device records
// a verifier for the passphrase, subsequent logins are checked against it.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		a.printf("Already logged in as %s", a.currentUser())
		return nil
	}

	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	if username == "" {
		return errors.New("username must not be empty")
	}

	passphrase, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	if len(passphrase) == 0 {
		return errors.New("passphrase must not be empty")
	}
	defer common.WipeByteArray(passphrase)

	salt, err := a.keystore.Salt(username)
	if err != nil {
		return err
	}
	key := cryptox.DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	verifier := cryptox.MakeVerifier(key)
	stored, err := a.meta.Get(ctx, verifierKey(username))
	switch {
	case err == nil:
		if subtle.ConstantTimeCompare(stored, verifier) != 1 {
			return errors.New("wrong passphrase")
		}
	case errors.Is(err, sql.ErrNoRows):
		// First login on this device.
		if err := a.meta.Set(ctx, verifierKey(username), verifier); err != nil {
			return err
		}
	default:
		return err
	}

	token, err := newSessionToken(username, key)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}
	if err := a.keys.InitializeWithSession(token, passphrase); err != nil {
		return err
	}
	if err := a.meta.Set(ctx, "username", []byte(username)); err != nil {
		return err
	}

	a.mu.Lock()
	a.userID = username
	a.token = token
	a.mu.Unlock()

	a.engine.Start(ctx)
	a.engine.Trigger()
	a.printf("Logged in as %s", username)
	return nil
}

// Logout stops the sync engine, waits for the in-flight drain, then wipes
// the session key. The order matters: a drain never runs without the rest of
// the session, and the key is never cleared under a running engine.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.printf("Not logged in")
		return nil
	}

	a.engine.Stop()
	a.keys.Clear()

	a.mu.Lock()
	a.userID = ""
	a.token = ""
	a.mu.Unlock()

	a.printf("Logged out")
	return nil
}

// Reset forgets this device: logs out, wipes the stored metadata (verifier
// included) and removes the key derivation salt. Local records stay in the
// database but are unreadable without the salt.
func (a *App) Reset(ctx context.Context) error {
	user := a.currentUser()
	if user == "" {
		a.printf("Not logged in")
		return nil
	}

	confirm, err := GetSimpleText(a.reader, "Type the username to confirm device reset", a.out)
	if err != nil {
		return err
	}
	if confirm != user {
		a.printf("Reset cancelled")
		return nil
	}

	if err := a.Logout(ctx); err != nil {
		return err
	}
	if err := a.meta.DeleteAll(ctx); err != nil {
		return err
	}
	if err := a.keystore.Wipe(user); err != nil {
		return err
	}
	a.printf("Device profile removed")
	return nil
}

func verifierKey(username string) string {
	return "verifier:" + username
}

// newSessionToken issues the local session JWT the key provider and the
// remote client consume. It is signed with the derived key; the backend
// re-validates sessions on its own terms.
func newSessionToken(userID string, key []byte) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
