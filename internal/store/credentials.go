package store

import (
	"database/sql"
	"time"
)

// SetCredential upserts a named credential such as the session cookie value.
func (s *Store) SetCredential(name, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UnixMilli(),
	)
	return err
}

// GetCredential returns the stored credential, or "" if it is not set.
func (s *Store) GetCredential(name string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// DeleteCredential removes a credential.
func (s *Store) DeleteCredential(name string) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE name = ?`, name)
	return err
}
