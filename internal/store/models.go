package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no model has the given hash.
var ErrNotFound = errors.New("model not found")

// Model is one registry entry. Payload is the serialized wire form;
// Hash is its content address.
type Model struct {
	Hash      string
	Name      string
	Producer  string
	Opset     int64
	Payload   []byte
	CreatedAt string
}

// Put stores a serialized model and returns its content hash.
// Storing the same payload twice is a no-op: the first row wins,
// including its name and metadata.
func (s *Store) Put(ctx context.Context, name, producer string, opset int64, payload []byte) (string, error) {
	hash := ModelHash(payload)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO models (hash, name, producer, opset, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, name, producer, opset, payload)
	if err != nil {
		return "", fmt.Errorf("put model: %w", err)
	}

	return hash, nil
}

// Get returns the model stored under hash.
func (s *Store) Get(ctx context.Context, hash string) (*Model, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hash, name, producer, opset, payload, created_at
		FROM models
		WHERE hash = ?
	`, hash)

	var m Model
	err := row.Scan(&m.Hash, &m.Name, &m.Producer, &m.Opset, &m.Payload, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get model %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", hash, err)
	}
	return &m, nil
}

// List returns all stored models without payloads, ordered
// deterministically by name then hash.
func (s *Store) List(ctx context.Context) ([]Model, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, name, producer, opset, created_at
		FROM models
		ORDER BY name ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.Hash, &m.Name, &m.Producer, &m.Opset, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}
