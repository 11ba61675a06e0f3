package credentials

import (
	"encoding/json"
	"fmt"
	"os"
)

// CredentialKey is the fixed name the calendar bearer token is stored under.
// The login flow writes the same key, which is how a token issued elsewhere
// in the process reaches the tracker.
const CredentialKey = "google_access_token"

// Store is the shared persistence for the calendar credential. Both the
// tracker and the unrelated login flow read and write it.
type Store interface {
	Get() (string, error)
	Put(token string) error
}

// FileStore keeps credentials in a small JSON object on disk.
// A missing file reads as an absent credential, which is a valid state.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read credential store: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return "", fmt.Errorf("failed to parse credential store: %w", err)
	}
	return values[CredentialKey], nil
}

func (s *FileStore) Put(token string) error {
	values := make(map[string]string)
	if data, err := os.ReadFile(s.path); err == nil {
		// Preserve any other keys the login flow keeps alongside ours.
		_ = json.Unmarshal(data, &values)
	}
	values[CredentialKey] = token
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential store: %w", err)
	}
	return nil
}
