// Package auth keeps the credentials of the FTP host the pipeline publishes
// to. Credentials are looked up in the environment first, then the system
// keychain, then an encrypted file in the user's config directory.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credentials for the publishing host
type Credentials struct {
	Host         string    `json:"host"`
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks that every field needed to log in is present
func (c *Credentials) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	return errors.Join(errs...)
}

// Sanitized returns a copy with the password masked
func (c *Credentials) Sanitized() *Credentials {
	out := *c
	out.Password = maskString(c.Password)
	return &out
}

// CredentialStore saves and loads credentials keyed by host. An empty host
// asks for the store's default entry.
type CredentialStore interface {
	Store(creds *Credentials) error
	Retrieve(host string) (*Credentials, error)
	Delete(host string) error
}

// Manager consults its stores in order
type Manager struct {
	stores []CredentialStore
}

// NewManager creates the standard store chain. configDir holds the
// encrypted file; empty means the per-user config directory.
func NewManager(configDir string, useKeyring bool) (*Manager, error) {
	if configDir == "" {
		dir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
	}

	stores := []CredentialStore{NewEnvironmentStore()}
	if useKeyring {
		if ks, err := NewKeyringStore(); err == nil {
			stores = append(stores, ks)
		}
	}
	encrypted, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encrypted)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials in the first store that accepts them
func (m *Manager) Store(creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(creds)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns credentials for host from the first store that has them
func (m *Manager) Retrieve(host string) (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(host); err == nil && creds != nil {
			return creds, nil
		}
	}
	if host == "" {
		return nil, ErrCredentialsNotFound
	}
	return nil, fmt.Errorf("%w for host %s", ErrCredentialsNotFound, host)
}

// Delete removes credentials for host from every store
func (m *Manager) Delete(host string) error {
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(host); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return fmt.Errorf("%w for host %s", ErrCredentialsNotFound, host)
	}
	return nil
}

func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "marsfeed")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "marsfeed")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "marsfeed")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "marsfeed")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// maskString masks all but the first and last two characters
func maskString(s string) string {
	if len(s) <= 6 {
		return "******"
	}
	return s[:2] + "..." + s[len(s)-2:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
