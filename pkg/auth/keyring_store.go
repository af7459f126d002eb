package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "isicfetch"
	keyringIndexKey = "isicfetch-accounts"
)

// KeyringStore implements CredentialStore using the OS keyring
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store, probing availability first
func NewKeyringStore() (*KeyringStore, error) {
	probe := "isicfetch-probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

// Store saves an account in the keyring and updates the account index
func (k *KeyringStore) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	username := SanitizeUsername(account.Username)
	if err := keyring.Set(keyringService, username, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.addToIndex(username)
}

// Retrieve gets an account from the keyring
func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		accounts, err := k.List()
		if err != nil || len(accounts) == 0 {
			return nil, ErrCredentialsNotFound
		}
		return accounts[0], nil
	}

	data, err := keyring.Get(keyringService, SanitizeUsername(username))
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to parse stored account: %w", err)
	}

	return &account, nil
}

// List returns every account recorded in the index
func (k *KeyringStore) List() ([]*Account, error) {
	usernames, err := k.loadIndex()
	if err != nil {
		return []*Account{}, nil
	}

	var accounts []*Account
	for _, username := range usernames {
		account, err := k.Retrieve(username)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// Delete removes an account from the keyring and the index
func (k *KeyringStore) Delete(username string) error {
	username = SanitizeUsername(username)
	if err := keyring.Delete(keyringService, username); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.removeFromIndex(username)
}

// Exists checks whether an account is present
func (k *KeyringStore) Exists(username string) bool {
	_, err := keyring.Get(keyringService, SanitizeUsername(username))
	return err == nil
}

// loadIndex reads the list of stored usernames. The keyring has no
// enumeration API, so the index lives under its own key.
func (k *KeyringStore) loadIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndexKey)
	if err != nil {
		return nil, err
	}

	var usernames []string
	if err := json.Unmarshal([]byte(data), &usernames); err != nil {
		return nil, err
	}
	return usernames, nil
}

func (k *KeyringStore) saveIndex(usernames []string) error {
	data, err := json.Marshal(usernames)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndexKey, string(data))
}

func (k *KeyringStore) addToIndex(username string) error {
	usernames, _ := k.loadIndex()
	for _, existing := range usernames {
		if existing == username {
			return nil
		}
	}
	return k.saveIndex(append(usernames, username))
}

func (k *KeyringStore) removeFromIndex(username string) error {
	usernames, err := k.loadIndex()
	if err != nil {
		return nil
	}

	filtered := usernames[:0]
	for _, existing := range usernames {
		if existing != username {
			filtered = append(filtered, existing)
		}
	}
	return k.saveIndex(filtered)
}
