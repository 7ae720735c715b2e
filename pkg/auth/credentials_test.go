package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process CredentialStore
type memoryStore struct {
	creds   map[string]Credentials
	last    string
	failing bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{creds: make(map[string]Credentials)}
}

func (m *memoryStore) Store(c *Credentials) error {
	if m.failing {
		return ErrStoreUnavailable
	}
	m.creds[c.Host] = *c
	m.last = c.Host
	return nil
}

func (m *memoryStore) Retrieve(host string) (*Credentials, error) {
	if host == "" {
		host = m.last
	}
	c, ok := m.creds[host]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &c, nil
}

func (m *memoryStore) Delete(host string) error {
	if _, ok := m.creds[host]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, host)
	return nil
}

func clearFTPEnv(t *testing.T) {
	for _, k := range []string{"HOSTNAME", "USERNAME", "PASSWORD"} {
		t.Setenv("FTP_"+k, "")
		t.Setenv("MARSFEED_FTP_"+k, "")
	}
}

func sample() *Credentials {
	return &Credentials{Host: "ftp.example.org", Username: "uploader", Password: "s3cret-pass"}
}

func TestCredentialsValidate(t *testing.T) {
	assert.NoError(t, sample().Validate())

	err := (&Credentials{Host: "h"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username is required")
	assert.Contains(t, err.Error(), "password is required")
}

func TestSanitized(t *testing.T) {
	c := sample()
	s := c.Sanitized()
	assert.Equal(t, "s3...ss", s.Password)
	assert.Equal(t, "s3cret-pass", c.Password)
	assert.Equal(t, "******", maskString("short"))
}

func TestManagerFallsThroughStores(t *testing.T) {
	broken := newMemoryStore()
	broken.failing = true
	working := newMemoryStore()
	m := NewManagerWithStores(broken, working)

	require.NoError(t, m.Store(sample()))
	assert.False(t, working.creds["ftp.example.org"].LastModified.IsZero())

	got, err := m.Retrieve("ftp.example.org")
	require.NoError(t, err)
	assert.Equal(t, "uploader", got.Username)

	def, err := m.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.org", def.Host)

	require.NoError(t, m.Delete("ftp.example.org"))
	_, err = m.Retrieve("ftp.example.org")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, m.Delete("ftp.example.org"), ErrCredentialsNotFound)
}

func TestManagerRejectsIncompleteCredentials(t *testing.T) {
	m := NewManagerWithStores(newMemoryStore())
	assert.Error(t, m.Store(&Credentials{Host: "h", Username: "u"}))
}

func TestEnvironmentStore(t *testing.T) {
	clearFTPEnv(t)
	store := NewEnvironmentStore()

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv("FTP_HOSTNAME", "ftp.example.org")
	t.Setenv("FTP_USERNAME", "plain")
	t.Setenv("FTP_PASSWORD", "pw")
	t.Setenv("MARSFEED_FTP_USERNAME", "prefixed")

	c, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", c.Username)
	assert.Equal(t, "pw", c.Password)

	_, err = store.Retrieve("other.example.org")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Store(sample()), ErrStoreUnavailable)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".passphrase"))

	_, err = store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(sample()))
	second := &Credentials{Host: "backup.example.org", Username: "b", Password: "bpass"}
	require.NoError(t, store.Store(second))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(content), "s3cret-pass"))
	var file sealedFile
	require.NoError(t, json.Unmarshal(content, &file))
	assert.Equal(t, 1, file.Version)

	// a second store over the same file reads the generated passphrase
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Retrieve("ftp.example.org")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", got.Password)

	def, err := reopened.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "backup.example.org", def.Host)

	require.NoError(t, reopened.Delete("backup.example.org"))
	def, err = reopened.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.org", def.Host)

	require.NoError(t, reopened.Delete("ftp.example.org"))
	assert.NoFileExists(t, path)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(sample()))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("ftp.example.org")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestNewManagerWithoutKeyring(t *testing.T) {
	clearFTPEnv(t)
	t.Setenv(PassphraseEnv, "pw")
	m, err := NewManager(t.TempDir(), false)
	require.NoError(t, err)

	require.NoError(t, m.Store(sample()))
	got, err := m.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "uploader", got.Username)
}
