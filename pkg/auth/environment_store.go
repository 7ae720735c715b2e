package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads FTP_HOSTNAME, FTP_USERNAME and FTP_PASSWORD, or
// their MARSFEED_FTP_* equivalents which take precedence. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(host string) (*Credentials, error) {
	creds := &Credentials{
		Host:         lookup("HOSTNAME"),
		Username:     lookup("USERNAME"),
		Password:     lookup("PASSWORD"),
		LastModified: time.Now(),
	}
	if creds.Validate() != nil {
		return nil, ErrCredentialsNotFound
	}
	if host != "" && host != creds.Host {
		return nil, ErrCredentialsNotFound
	}
	return creds, nil
}

func (e *EnvironmentStore) Delete(host string) error {
	return ErrStoreUnavailable
}

func lookup(suffix string) string {
	if v := os.Getenv("MARSFEED_FTP_" + suffix); v != "" {
		return v
	}
	return os.Getenv("FTP_" + suffix)
}
