package store

import (
	"database/sql"

	"github.com/pavelanni/mocktest/internal/model"
)

const (
	metaUsername = "username"
	metaEmail    = "email"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// DeleteMetadata removes a metadata key.
func (s *Store) DeleteMetadata(key string) error {
	_, err := s.db.Exec(`DELETE FROM metadata WHERE key = ?`, key)
	return err
}

// SetAccount remembers who signed in last, for display only.
func (s *Store) SetAccount(acc model.Account) error {
	pairs := []struct{ k, v string }{
		{metaUsername, acc.Username},
		{metaEmail, acc.Email},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetAccount reads the remembered account. Fields are empty when nobody signed in.
func (s *Store) GetAccount() (model.Account, error) {
	var acc model.Account
	var err error
	if acc.Username, err = s.GetMetadata(metaUsername); err != nil {
		return acc, err
	}
	if acc.Email, err = s.GetMetadata(metaEmail); err != nil {
		return acc, err
	}
	return acc, nil
}

// ClearAccount forgets the remembered account.
func (s *Store) ClearAccount() error {
	for _, k := range []string{metaUsername, metaEmail} {
		if err := s.DeleteMetadata(k); err != nil {
			return err
		}
	}
	return nil
}
