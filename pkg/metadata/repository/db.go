package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storeit/server/pkg/apperr"
	"github.com/storeit/server/pkg/types"
	_ "modernc.org/sqlite"
)

// MetadataRepository handles the files_metadata table. Operations on
// different ids are safe to call concurrently; concurrent mutation of the
// same id is last-writer-wins.
type MetadataRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (or creates) the SQLite database at dbPath and ensures the
// schema exists. logger may be nil.
func New(dbPath string, logger *zap.Logger) (*MetadataRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewWithDB(db, logger)
}

// NewWithDB wraps an existing connection. Used by tests that inject a mock
// or an in-memory database.
func NewWithDB(db *sql.DB, logger *zap.Logger) (*MetadataRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	repo := &MetadataRepository{db: db, logger: logger}
	if err := repo.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}
	return repo, nil
}

// Close closes the database connection.
func (r *MetadataRepository) Close() error {
	return r.db.Close()
}

func (r *MetadataRepository) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS files_metadata (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		size INTEGER NOT NULL,
		url TEXT NOT NULL,
		owner TEXT NOT NULL,
		shared_with TEXT NOT NULL DEFAULT '[]', -- JSON array of emails
		date_added DATETIME NOT NULL,
		last_edited DATETIME NOT NULL,
		UNIQUE(owner, name)
	);

	CREATE INDEX IF NOT EXISTS idx_files_metadata_owner ON files_metadata(owner);
	CREATE INDEX IF NOT EXISTS idx_files_metadata_last_edited ON files_metadata(last_edited);
	`

	_, err := r.db.Exec(query)
	return err
}

const recordColumns = `id, name, type, size, url, owner, shared_with, date_added, last_edited`

// Create inserts a new record. Inserting the same id twice is an idempotent
// no-op; a different record colliding on (owner, name) fails with
// ErrAlreadyExists.
func (r *MetadataRepository) Create(ctx context.Context, rec *types.FileRecord) error {
	const op = "repository.Create"

	sharedJSON, err := json.Marshal(rec.SharedWith)
	if err != nil {
		return apperr.E(apperr.ErrPersistence, op, rec.Owner, rec.Name, err)
	}

	query := `
	INSERT INTO files_metadata (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.Name, string(rec.Type), rec.Size, rec.URL,
		rec.Owner, string(sharedJSON), rec.DateAdded, rec.LastEdited)
	if err == nil {
		return nil
	}

	// The insert failed; figure out which constraint we hit. A repeated
	// create of the same record is a no-op, but a different record reusing
	// an id is a conflict.
	if existing, lookupErr := r.GetByID(ctx, rec.ID); lookupErr == nil {
		if existing.Owner == rec.Owner && existing.Name == rec.Name {
			return nil
		}
		return apperr.E(apperr.ErrAlreadyExists, op, rec.Owner, rec.Name, err)
	}
	taken, lookupErr := r.nameTaken(ctx, rec.Owner, rec.Name)
	if lookupErr == nil && taken {
		return apperr.E(apperr.ErrAlreadyExists, op, rec.Owner, rec.Name, err)
	}
	return apperr.E(apperr.ErrPersistence, op, rec.Owner, rec.Name, err)
}

// GetByID retrieves a record by id.
func (r *MetadataRepository) GetByID(ctx context.Context, id string) (*types.FileRecord, error) {
	const op = "repository.GetByID"

	query := `SELECT ` + recordColumns + ` FROM files_metadata WHERE id = ?`

	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.E(apperr.ErrNotFound, op, "", id, nil)
		}
		return nil, apperr.E(apperr.ErrPersistence, op, "", id, err)
	}
	return rec, nil
}

// GetByOwnerName retrieves a record by its on-disk key.
func (r *MetadataRepository) GetByOwnerName(ctx context.Context, owner, name string) (*types.FileRecord, error) {
	const op = "repository.GetByOwnerName"

	query := `SELECT ` + recordColumns + ` FROM files_metadata WHERE owner = ? AND name = ?`

	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, query, owner, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.E(apperr.ErrNotFound, op, owner, name, nil)
		}
		return nil, apperr.E(apperr.ErrPersistence, op, owner, name, err)
	}
	return rec, nil
}

// ListByOwner returns the owner's records ordered by last_edited descending.
// limit <= 0 means no limit.
func (r *MetadataRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]*types.FileRecord, error) {
	const op = "repository.ListByOwner"

	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 disables the limit
	}
	query := `
	SELECT ` + recordColumns + ` FROM files_metadata
	WHERE owner = ?
	ORDER BY last_edited DESC
	LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, apperr.E(apperr.ErrPersistence, op, owner, "", err)
	}
	defer rows.Close()

	records, err := r.collectRecords(rows)
	if err != nil {
		return nil, apperr.E(apperr.ErrPersistence, op, owner, "", err)
	}
	return records, nil
}

// ListSharedWith returns records whose share list contains the given email,
// ordered by last_edited descending.
func (r *MetadataRepository) ListSharedWith(ctx context.Context, email string) ([]*types.FileRecord, error) {
	const op = "repository.ListSharedWith"

	// Exact element match over the JSON array. A LIKE substring match would
	// treat _ and % in the email as wildcards.
	query := `
	SELECT ` + recordColumns + ` FROM files_metadata
	WHERE json_valid(shared_with) AND EXISTS (
		SELECT 1 FROM json_each(files_metadata.shared_with)
		WHERE json_each.value = ?
	)
	ORDER BY last_edited DESC
	`

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, apperr.E(apperr.ErrPersistence, op, "", email, err)
	}
	defer rows.Close()

	records, err := r.collectRecords(rows)
	if err != nil {
		return nil, apperr.E(apperr.ErrPersistence, op, "", email, err)
	}
	return records, nil
}

// Update replaces the mutable fields (name, type, url, shared_with) of an
// existing record and refreshes last_edited. The updated timestamp is
// written back into rec.
func (r *MetadataRepository) Update(ctx context.Context, rec *types.FileRecord) error {
	const op = "repository.Update"

	sharedJSON, err := json.Marshal(rec.SharedWith)
	if err != nil {
		return apperr.E(apperr.ErrPersistence, op, rec.Owner, rec.ID, err)
	}

	rec.LastEdited = time.Now().UTC()

	query := `
	UPDATE files_metadata
	SET name = ?, type = ?, url = ?, shared_with = ?, last_edited = ?
	WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		rec.Name, string(rec.Type), rec.URL, string(sharedJSON), rec.LastEdited, rec.ID)
	if err != nil {
		// A rename can collide with another record on UNIQUE(owner, name).
		taken, lookupErr := r.nameTaken(ctx, rec.Owner, rec.Name)
		if lookupErr == nil && taken {
			return apperr.E(apperr.ErrAlreadyExists, op, rec.Owner, rec.Name, err)
		}
		return apperr.E(apperr.ErrPersistence, op, rec.Owner, rec.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.E(apperr.ErrPersistence, op, rec.Owner, rec.ID, err)
	}
	if affected == 0 {
		return apperr.E(apperr.ErrNotFound, op, rec.Owner, rec.ID, nil)
	}
	return nil
}

// Delete removes a record by id.
func (r *MetadataRepository) Delete(ctx context.Context, id string) error {
	const op = "repository.Delete"

	res, err := r.db.ExecContext(ctx, `DELETE FROM files_metadata WHERE id = ?`, id)
	if err != nil {
		return apperr.E(apperr.ErrPersistence, op, "", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.E(apperr.ErrPersistence, op, "", id, err)
	}
	if affected == 0 {
		return apperr.E(apperr.ErrNotFound, op, "", id, nil)
	}
	return nil
}

// SumSizeByOwner returns the total byte size of all records owned by owner.
// An error here must never be collapsed to zero by callers: a zero result
// only ever means a verified empty set.
func (r *MetadataRepository) SumSizeByOwner(ctx context.Context, owner string) (int64, error) {
	const op = "repository.SumSizeByOwner"

	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM files_metadata WHERE owner = ?`, owner).Scan(&total)
	if err != nil {
		return 0, apperr.E(apperr.ErrPersistence, op, owner, "", err)
	}
	return total, nil
}

func (r *MetadataRepository) nameTaken(ctx context.Context, owner, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM files_metadata WHERE owner = ? AND name = ?)`, owner, name).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *MetadataRepository) scanRecord(row rowScanner) (*types.FileRecord, error) {
	var rec types.FileRecord
	var sharedJSON string

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Type,
		&rec.Size,
		&rec.URL,
		&rec.Owner,
		&sharedJSON,
		&rec.DateAdded,
		&rec.LastEdited,
	)
	if err != nil {
		return nil, err
	}

	// A corrupted share list degrades to "shared with nobody" rather than
	// making the record unreadable, but never silently.
	if err := json.Unmarshal([]byte(sharedJSON), &rec.SharedWith); err != nil {
		r.logger.Warn("malformed shared_with column, treating as unshared",
			zap.String("file_id", rec.ID),
			zap.Error(err))
		rec.SharedWith = []string{}
	}
	return &rec, nil
}

func (r *MetadataRepository) collectRecords(rows *sql.Rows) ([]*types.FileRecord, error) {
	var records []*types.FileRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
