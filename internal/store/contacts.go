package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// GetContactsPage reads ordinals [fromOrdinal, fromOrdinal+limit) from a
// contact list. List authoring (CSV upload, CRUD) is out of scope here
// (spec.md Non-goals) — the runner only ever reads forward through a list
// by ordinal.
func (s *Store) GetContactsPage(ctx context.Context, listID string, fromOrdinal, limit int) ([]Contact, error) {
	const q = `
SELECT list_id, ordinal, number, first_name, email, fields
FROM contacts
WHERE list_id = $1 AND ordinal >= $2
ORDER BY ordinal ASC
LIMIT $3
`
	rows, err := s.db.QueryContext(ctx, q, listID, fromOrdinal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		var fieldsJSON []byte
		if err := rows.Scan(&c.ListID, &c.Ordinal, &c.Number, &c.FirstName, &c.Email, &fieldsJSON); err != nil {
			return nil, err
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &c.Fields); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetContactAtOrdinal(ctx context.Context, listID string, ordinal int) (Contact, error) {
	const q = `
SELECT list_id, ordinal, number, first_name, email, fields
FROM contacts
WHERE list_id = $1 AND ordinal = $2
`
	var c Contact
	var fieldsJSON []byte
	err := s.db.QueryRowContext(ctx, q, listID, ordinal).Scan(&c.ListID, &c.Ordinal, &c.Number, &c.FirstName, &c.Email, &fieldsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &c.Fields); err != nil {
			return Contact{}, err
		}
	}
	return c, nil
}

// CountContacts is used at campaign creation to populate totalContacts.
func (s *Store) CountContacts(ctx context.Context, listID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM contacts WHERE list_id = $1`, listID).Scan(&n)
	return n, err
}
