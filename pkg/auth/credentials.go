package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

var (
	// ErrCredentialsNotFound is returned when no stored token exists
	ErrCredentialsNotFound = errors.New("credentials not found")
	// ErrInvalidCredentials is returned when credentials are malformed
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStoreUnavailable is returned when a credential store cannot be used
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Account holds an archive API token tied to a username
type Account struct {
	Username     string    `json:"username"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks that the account carries the fields a store needs
func (a *Account) Validate() error {
	if a.Username == "" || a.Token == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// CredentialStore is the interface for credential storage backends
type CredentialStore interface {
	// Store saves an account's credentials
	Store(account *Account) error
	// Retrieve gets credentials for a username
	Retrieve(username string) (*Account, error)
	// List returns all stored accounts
	List() ([]*Account, error)
	// Delete removes credentials for a username
	Delete(username string) error
	// Exists checks if credentials exist for a username
	Exists(username string) bool
}

// Manager coordinates multiple credential stores with fallback:
// system keyring, then encrypted file, then environment variables
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the default store chain
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if fileStore, err := NewEncryptedFileStore(); err == nil {
		stores = append(stores, fileStore)
	}

	stores = append(stores, NewEnvironmentStore())

	if len(stores) == 0 {
		return nil, ErrStoreUnavailable
	}

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager with an explicit store chain
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials to the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("all credential stores failed: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		account, err := store.Retrieve(username)
		if err == nil && account != nil {
			return account, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// List returns all accounts across stores, deduplicated by username
// keeping the most recently modified entry
func (m *Manager) List() ([]*Account, error) {
	seen := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			existing, ok := seen[account.Username]
			if !ok || account.LastModified.After(existing.LastModified) {
				seen[account.Username] = account
			}
		}
	}

	result := make([]*Account, 0, len(seen))
	for _, account := range seen {
		result = append(result, account)
	}
	return result, nil
}

// Delete removes credentials from every store that has them
func (m *Manager) Delete(username string) error {
	deleted := false
	for _, store := range m.stores {
		if store.Exists(username) {
			if err := store.Delete(username); err == nil {
				deleted = true
			}
		}
	}

	if !deleted {
		return ErrCredentialsNotFound
	}
	return nil
}

// Exists checks if credentials exist for a username in any store
func (m *Manager) Exists(username string) bool {
	for _, store := range m.stores {
		if store.Exists(username) {
			return true
		}
	}
	return false
}

// SanitizeUsername normalizes a username for use as a store key
func SanitizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// MaskToken returns a token safe for display, keeping only the edges
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// getConfigDir returns the platform config directory for stored credentials
func getConfigDir() (string, error) {
	var base string

	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
	}

	configDir := filepath.Join(base, "isicfetch")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}
