package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// VectorRecord holds an embedding for an entity.
type VectorRecord struct {
	EntityID   string    `json:"entity_id"`
	Embedding  []float64 `json:"embedding"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  int64     `json:"created_at"`
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveVector stores or replaces the embedding for an entity.
func (db *DB) SaveVector(entityID string, embedding []float64, model string) error {
	now := time.Now().UnixMilli()
	blob := encodeEmbedding(embedding)

	_, err := db.Exec(`
		INSERT INTO vectors (entity_id, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET embedding = ?, model = ?, dimensions = ?, created_at = ?
	`, entityID, blob, model, len(embedding), now,
		blob, model, len(embedding), now)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector returns the embedding for an entity, or nil if not found.
func (db *DB) GetVector(entityID string) (*VectorRecord, error) {
	var v VectorRecord
	var blob []byte

	err := db.QueryRow(`
		SELECT entity_id, embedding, model, dimensions, created_at
		FROM vectors WHERE entity_id = ?
	`, entityID).Scan(&v.EntityID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	v.Embedding = decodeEmbedding(blob)
	return &v, nil
}

// AllVectors returns all stored vector records.
func (db *DB) AllVectors() ([]VectorRecord, error) {
	rows, err := db.Query(`
		SELECT entity_id, embedding, model, dimensions, created_at
		FROM vectors
	`)
	if err != nil {
		return nil, fmt.Errorf("all vectors: %w", err)
	}
	defer rows.Close()

	var records []VectorRecord
	for rows.Next() {
		var v VectorRecord
		var blob []byte
		if err := rows.Scan(&v.EntityID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		v.Embedding = decodeEmbedding(blob)
		records = append(records, v)
	}
	return records, rows.Err()
}

// DeleteVector removes the embedding for an entity.
func (db *DB) DeleteVector(entityID string) error {
	_, err := db.Exec("DELETE FROM vectors WHERE entity_id = ?", entityID)
	if err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	return nil
}
