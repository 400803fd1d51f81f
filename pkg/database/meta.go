package database

import (
	"context"
	"fmt"
	"strconv"
)

// Meta keys in engine_meta.
const (
	MetaDataGeneration    = "data_generation"
	MetaHierarchyCacheKey = "hierarchy_cache_key"
)

// GetMeta reads one engine_meta value. Missing keys return "".
func GetMeta(ctx context.Context, h Queryer, key string) (string, error) {
	var value string
	err := h.QueryRow(ctx, `SELECT value FROM engine_meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta upserts one engine_meta value.
func SetMeta(ctx context.Context, h Queryer, key, value string) error {
	_, err := h.Exec(ctx, `
		INSERT INTO engine_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// DataGeneration returns the monotonic stamp bumped by every ingest batch
// and every mapping mutation. The filter cache compares it against the
// stamp its snapshot was built from.
func DataGeneration(ctx context.Context, h Queryer) (uint64, error) {
	raw, err := GetMeta(ctx, h, MetaDataGeneration)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	gen, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed data_generation %q: %w", raw, err)
	}
	return gen, nil
}

// BumpDataGeneration increments the data-generation stamp.
func BumpDataGeneration(ctx context.Context, h Queryer) error {
	_, err := h.Exec(ctx, `
		UPDATE engine_meta
		SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)
		WHERE key = ?`, MetaDataGeneration)
	if err != nil {
		return fmt.Errorf("failed to bump data generation: %w", err)
	}
	return nil
}
