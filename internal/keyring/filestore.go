package keyring

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stepwise-app/stepwise/internal/common"
)

const saltSize = 16

// FileKeystore persists per-user derivation salts as files under a private
// directory. It stands in for a hardware-backed store on platforms without
// one; only salts are written, never key material.
type FileKeystore struct {
	dir string
}

// NewFileKeystore ensures dir exists with owner-only permissions.
func NewFileKeystore(dir string) (*FileKeystore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &FileKeystore{dir: dir}, nil
}

func (s *FileKeystore) saltPath(userID string) string {
	// User ids are uuids; replace separators anyway so a hostile id cannot
	// escape the keystore directory.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(userID)
	return filepath.Join(s.dir, safe+".salt")
}

// Salt returns the stored salt for userID, creating one on first use.
func (s *FileKeystore) Salt(userID string) ([]byte, error) {
	path := s.saltPath(userID)

	b, err := os.ReadFile(path)
	if err == nil {
		salt, derr := hex.DecodeString(strings.TrimSpace(string(b)))
		if derr != nil || len(salt) != saltSize {
			return nil, fmt.Errorf("keystore entry for %s is corrupt", userID)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	salt, err := common.RandBytes(saltSize)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(salt)), 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return salt, nil
}

// Wipe removes the stored salt for userID. Missing entries are not an error.
func (s *FileKeystore) Wipe(userID string) error {
	err := os.Remove(s.saltPath(userID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
