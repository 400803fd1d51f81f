// Package schema owns the dimension tables: one enumeration table per
// categorical field, mapping a stable integer id to a value. IDs are
// allocated once at ingestion and never reused; values are never deleted,
// only superseded by regularization.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// AllCategories is the full dimension registry, shared first.
var AllCategories = func() []models.DimensionCategory {
	cats := make([]models.DimensionCategory, 0, 10)
	cats = append(cats, models.SharedCategories...)
	cats = append(cats, models.VehicleCategories...)
	cats = append(cats, models.LicenseCategories...)
	return cats
}()

// maxValueLen bounds a categorical value. The registry's longest observed
// value is under 120 characters; anything longer is a parsing artifact.
const maxValueLen = 256

// DimensionSchema creates and maintains the dimension tables.
type DimensionSchema struct {
	db     *database.DB
	logger *zap.Logger
}

// New creates a DimensionSchema over db.
func New(db *database.DB, logger *zap.Logger) *DimensionSchema {
	return &DimensionSchema{db: db, logger: logger}
}

// Create idempotently creates every dimension table and its indexes. Must
// run before any population. Fails with ErrSchema only on storage-layer
// faults.
func (s *DimensionSchema) Create(ctx context.Context) error {
	h, err := s.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSchema, err)
	}
	defer h.Close()

	for _, cat := range AllCategories {
		for _, stmt := range createStatements(cat) {
			if _, err := h.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%w: creating %s: %v", apperrors.ErrSchema, cat.TableName(), err)
			}
		}
	}

	s.logger.Info("Dimension tables ready", zap.Int("categories", len(AllCategories)))
	return nil
}

// createStatements returns the idempotent DDL for one dimension table.
func createStatements(cat models.DimensionCategory) []string {
	table := cat.TableName()
	var cols string
	if cat.HasParent() {
		cols = `
			id INTEGER PRIMARY KEY,
			value TEXT NOT NULL,
			make_id INTEGER NOT NULL DEFAULT 0`
	} else {
		cols = `
			id INTEGER PRIMARY KEY,
			value TEXT NOT NULL`
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, table, cols),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_value ON %s (value)`, table, table),
	}
	if cat.HasParent() {
		stmts = append(stmts,
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_make_id ON %s (make_id)`, table, table))
	}
	return stmts
}

// VerifyIndexes is the boot-time invariant check: every dimension table must
// exist with an integer-primary-key id column and a unique index on value.
// A violation is an ErrSchema naming the offending table.
func (s *DimensionSchema) VerifyIndexes(ctx context.Context) error {
	h, err := s.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSchema, err)
	}
	defer h.Close()

	for _, cat := range AllCategories {
		if err := verifyTable(ctx, h, cat); err != nil {
			return err
		}
	}
	return nil
}

func verifyTable(ctx context.Context, h *database.Handle, cat models.DimensionCategory) error {
	table := cat.TableName()

	// id must be the integer primary key (SQLite rowid alias, indexed by
	// construction).
	rows, err := h.Query(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return fmt.Errorf("%w: inspecting %s: %v", apperrors.ErrSchema, table, err)
	}
	idIsPK := false
	seen := 0
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("%w: inspecting %s: %v", apperrors.ErrSchema, table, err)
		}
		seen++
		if name == "id" && pk == 1 && strings.EqualFold(typ, "INTEGER") {
			idIsPK = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("%w: inspecting %s: %v", apperrors.ErrSchema, table, err)
	}
	rows.Close()

	if seen == 0 {
		return fmt.Errorf("%w: dimension table %s does not exist", apperrors.ErrSchema, table)
	}
	if !idIsPK {
		return fmt.Errorf("%w: dimension table %s has no indexed id column", apperrors.ErrSchema, table)
	}

	// value must carry a unique index.
	idxRows, err := h.Query(ctx, fmt.Sprintf(`PRAGMA index_list(%s)`, table))
	if err != nil {
		return fmt.Errorf("%w: listing indexes of %s: %v", apperrors.ErrSchema, table, err)
	}
	defer idxRows.Close()

	hasValueIndex := false
	for idxRows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := idxRows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return fmt.Errorf("%w: listing indexes of %s: %v", apperrors.ErrSchema, table, err)
		}
		if unique == 1 && strings.HasSuffix(name, "_value") {
			hasValueIndex = true
		}
	}
	if err := idxRows.Err(); err != nil {
		return fmt.Errorf("%w: listing indexes of %s: %v", apperrors.ErrSchema, table, err)
	}

	if !hasValueIndex {
		return fmt.Errorf("%w: dimension table %s has no unique value index", apperrors.ErrSchema, table)
	}
	return nil
}

// ValidateValue rejects malformed categorical values. Callers on the
// ingestion path skip and report the row; a bad value never aborts a batch.
func ValidateValue(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("empty categorical value")
	}
	if len(value) > maxValueLen {
		return "", fmt.Errorf("categorical value exceeds %d bytes", maxValueLen)
	}
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("categorical value is not valid UTF-8")
	}
	return value, nil
}

// GetOrCreateID returns the existing id for rawValue in the category's
// dimension, or atomically allocates a new one. Called only from the
// single-writer ingestion path; not designed for concurrent writers.
// parentID is the make id for model values, 0 otherwise.
func (s *DimensionSchema) GetOrCreateID(ctx context.Context, q database.Queryer, cat models.DimensionCategory, rawValue string, parentID uint32) (uint32, error) {
	value, err := ValidateValue(rawValue)
	if err != nil {
		return 0, fmt.Errorf("dimension %s: %w", cat, err)
	}

	table := cat.TableName()

	var id uint32
	err = q.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE value = ?`, table), value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !database.IsNoRows(err) {
		return 0, apperrors.Storage("dimension lookup", err)
	}

	var res sql.Result
	if cat.HasParent() {
		res, err = q.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (value, make_id) VALUES (?, ?)`, table), value, parentID)
	} else {
		res, err = q.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (value) VALUES (?)`, table), value)
	}
	if err != nil {
		return 0, apperrors.Storage("dimension insert", err)
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Storage("dimension insert id", err)
	}
	return uint32(newID), nil
}
