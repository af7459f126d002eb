package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and mainly serves CI and containerized runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from ISICFETCH_TOKEN and ISIC_USERNAME
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	token := os.Getenv("ISICFETCH_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := os.Getenv("ISIC_USERNAME")
	if username == "" {
		username = envUser
	}
	if username == "" {
		username = "default"
	}

	return &Account{
		Username:     username,
		Token:        token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the token variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials are set
func (e *EnvironmentStore) Exists(username string) bool {
	return os.Getenv("ISICFETCH_TOKEN") != ""
}
