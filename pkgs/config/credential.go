package config

import (
	"fmt"

	"github.com/99designs/keyring"
)

// KeyringService is the service name passwords are stored under.
const KeyringService = "emx-export"

// Credentials stores IMAP passwords in the system keyring, keyed by
// username.
type Credentials struct {
	open func() (keyring.Keyring, error)
}

// NewCredentials uses the platform keyring, falling back to an encrypted
// file under ~/.config/emx-export/credentials.
func NewCredentials() *Credentials {
	return &Credentials{open: openKeyring}
}

// NewCredentialsWith uses ring instead of the system keyring.
func NewCredentialsWith(ring keyring.Keyring) *Credentials {
	return &Credentials{open: func() (keyring.Keyring, error) { return ring, nil }}
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: KeyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/emx-export/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("emx-export-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get returns the stored password for username.
func (c *Credentials) Get(username string) (string, error) {
	ring, err := c.open()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(username)
	if err != nil {
		return "", fmt.Errorf("getting password for %q: %w", username, err)
	}
	return string(item.Data), nil
}

// Set stores password for username.
func (c *Credentials) Set(username, password string) error {
	ring, err := c.open()
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{
		Key:         username,
		Data:        []byte(password),
		Label:       KeyringService + " " + username,
		Description: "IMAP password",
	})
	if err != nil {
		return fmt.Errorf("setting password for %q: %w", username, err)
	}
	return nil
}

// Delete removes the stored password for username.
func (c *Credentials) Delete(username string) error {
	ring, err := c.open()
	if err != nil {
		return err
	}
	if err := ring.Remove(username); err != nil {
		return fmt.Errorf("deleting password for %q: %w", username, err)
	}
	return nil
}
