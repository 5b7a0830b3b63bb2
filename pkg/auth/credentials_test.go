package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount() *Account {
	return &Account{
		Username:    "testuser",
		AuthToken:   "auth-token-value-000000",
		CSRFToken:   "csrf-token-value-000000",
		BearerToken: "bearer-token-value-0000",
		UserAgent:   "test-agent",
	}
}

func newTestEncryptedStore(t *testing.T) *EncryptedFileStore {
	t.Helper()
	t.Setenv("XSCRAPER_PASSPHRASE", "test-passphrase")

	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)
	return store
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	store := newTestEncryptedStore(t)

	acct := testAccount()
	acct.LastModified = time.Now()
	require.NoError(t, store.Store(acct))

	got, err := store.Retrieve("testuser")
	require.NoError(t, err)
	assert.Equal(t, acct.AuthToken, got.AuthToken)
	assert.Equal(t, acct.CSRFToken, got.CSRFToken)
	assert.Equal(t, acct.BearerToken, got.BearerToken)
}

func TestEncryptedStoreFileIsOpaque(t *testing.T) {
	t.Setenv("XSCRAPER_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(testAccount()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "auth-token-value-000000")
	assert.NotContains(t, string(data), "csrf-token-value-000000")
}

func TestEncryptedStoreDelete(t *testing.T) {
	store := newTestEncryptedStore(t)

	require.NoError(t, store.Store(testAccount()))
	require.True(t, store.Exists("testuser"))

	require.NoError(t, store.Delete("testuser"))
	assert.False(t, store.Exists("testuser"))

	_, err := store.Retrieve("testuser")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStoreRetrieve(t *testing.T) {
	t.Setenv("XSCRAPER_AUTH_TOKEN", "env-auth")
	t.Setenv("XSCRAPER_CSRF_TOKEN", "env-csrf")
	t.Setenv("XSCRAPER_BEARER_TOKEN", "env-bearer")
	t.Setenv("XSCRAPER_USERNAME", "envuser")

	store := NewEnvironmentStore()
	acct, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "envuser", acct.Username)
	assert.Equal(t, "env-auth", acct.AuthToken)
	assert.Equal(t, "env-bearer", acct.BearerToken)

	assert.ErrorIs(t, store.Store(acct), ErrStoreUnavailable)
}

func TestEnvironmentStoreMissingCredentials(t *testing.T) {
	t.Setenv("XSCRAPER_AUTH_TOKEN", "")
	t.Setenv("XSCRAPER_CSRF_TOKEN", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))
}

func TestManagerStoreValidation(t *testing.T) {
	m := NewManagerWithStores(newTestEncryptedStore(t))

	err := m.Store(&Account{AuthToken: "a", CSRFToken: "c"})
	assert.EqualError(t, err, "username is required")

	err = m.Store(&Account{Username: "u", CSRFToken: "c"})
	assert.EqualError(t, err, "auth token is required")

	err = m.Store(&Account{Username: "u", AuthToken: "a"})
	assert.EqualError(t, err, "CSRF token is required")
}

func TestManagerFallsThroughStores(t *testing.T) {
	t.Setenv("XSCRAPER_AUTH_TOKEN", "")
	t.Setenv("XSCRAPER_CSRF_TOKEN", "")

	readonly := NewEnvironmentStore()
	working := newTestEncryptedStore(t)
	m := NewManagerWithStores(readonly, working)

	require.NoError(t, m.Store(testAccount()))

	got, err := m.Retrieve("testuser")
	require.NoError(t, err)
	assert.Equal(t, "testuser", got.Username)
}

func TestSanitizeAccountMasksSecrets(t *testing.T) {
	sanitized := SanitizeAccount(testAccount())
	assert.Equal(t, "testuser", sanitized.Username)
	assert.Equal(t, "auth...0000", sanitized.AuthToken)
	assert.NotContains(t, sanitized.CSRFToken, "token-value")

	short := SanitizeAccount(&Account{Username: "u", AuthToken: "tiny"})
	assert.Equal(t, "********", short.AuthToken)
}
