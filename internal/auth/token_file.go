package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/desertthunder/spotx/internal/shared"
)

// TokenFile persists the refresh token as a single plaintext file.
type TokenFile struct {
	path string
}

// NewTokenFile returns a store at path, expanding a leading "~".
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: shared.ExpandPath(path)}
}

// Path returns the resolved file path.
func (f *TokenFile) Path() string { return f.path }

// Load returns the stored refresh token, or [shared.ErrNoRefreshToken] when none is stored.
func (f *TokenFile) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", shared.ErrNoRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", shared.ErrNoRefreshToken
	}
	return token, nil
}

// Save replaces the stored token atomically: a sibling temp file is written, synced, and renamed
// over the target so a crash never leaves a truncated token behind.
func (f *TokenFile) Save(token string) (err error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.WriteString(token); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err = tmp.Chmod(0o600); err != nil {
			return fmt.Errorf("failed to set token file mode: %w", err)
		}
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(f.path)
	}
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Delete removes the stored token. A missing file is not an error.
func (f *TokenFile) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
