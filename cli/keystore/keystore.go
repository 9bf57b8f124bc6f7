// Package keystore stores provider API keys in an encrypted file.
package keystore

import (
	"os"
	"path/filepath"
	"runtime"
)

// MasterKeyEnvVar overrides the machine-derived master key.
const MasterKeyEnvVar = "IMGGEN_MASTER_KEY"

// Keystore stores API keys by provider name.
type Keystore interface {
	// Set stores the key for a provider, replacing any previous value.
	Set(provider, key string) error
	// Get returns the key for a provider, or *ErrKeyNotFound.
	Get(provider string) (string, error)
	// List returns the providers that have a stored key.
	List() ([]string, error)
}

// ErrKeyNotFound is returned when no key is stored for a provider.
type ErrKeyNotFound struct {
	Name string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Name
}

// MasterKeySource supplies the secret the file encryption key is derived from.
type MasterKeySource interface {
	MasterKey() ([]byte, error)
}

// StaticKey is a MasterKeySource holding a fixed secret.
type StaticKey []byte

// MasterKey returns the secret.
func (k StaticKey) MasterKey() ([]byte, error) {
	return []byte(k), nil
}

// machineKey derives the master key from the host and user names. It only
// keeps keys from being stored in plain text.
type machineKey struct{}

func (machineKey) MasterKey() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	return []byte(hostname + ":" + username + ":imggen-keystore"), nil
}

// DefaultMasterKeySource returns IMGGEN_MASTER_KEY when set, and the
// machine-derived key otherwise.
func DefaultMasterKeySource() MasterKeySource {
	if v := os.Getenv(MasterKeyEnvVar); v != "" {
		return StaticKey(v)
	}
	return machineKey{}
}

// DefaultKeystorePath returns the default keystore file path.
// - macOS/Linux: ~/.imggen/keys.enc
// - Windows: %USERPROFILE%\.imggen\keys.enc
func DefaultKeystorePath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "keys.enc"
	}

	return filepath.Join(homeDir, ".imggen", "keys.enc")
}

// NewKeystore opens the default keystore with the default master key source.
func NewKeystore() (Keystore, error) {
	return NewFileKeystore(DefaultKeystorePath(), DefaultMasterKeySource())
}
