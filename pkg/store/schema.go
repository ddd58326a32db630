//go:build !wasm

package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB) error {
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	if err := createBlobsTable(db); err != nil {
		return fmt.Errorf("creating blobs table: %w", err)
	}

	if err := createRulesTable(db); err != nil {
		return fmt.Errorf("creating rules table: %w", err)
	}

	if err := createMatchesTable(db); err != nil {
		return fmt.Errorf("creating matches table: %w", err)
	}

	if err := createFindingsTable(db); err != nil {
		return fmt.Errorf("creating findings table: %w", err)
	}

	if err := createProvenanceTable(db); err != nil {
		return fmt.Errorf("creating provenance table: %w", err)
	}

	return nil
}

// ReadSchemaVersion returns the version recorded in db.
func ReadSchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	return nil
}

func createBlobsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blobs (
			id TEXT PRIMARY KEY NOT NULL,
			size INTEGER NOT NULL
		)
	`)
	return err
}

func createRulesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY NOT NULL,
			name TEXT NOT NULL,
			signature TEXT NOT NULL,
			sig_offset INTEGER NOT NULL DEFAULT 0,
			structural_id TEXT NOT NULL
		)
	`)
	return err
}

func createMatchesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blob_id TEXT NOT NULL REFERENCES blobs(id),
			rule_id TEXT NOT NULL,
			rule_name TEXT NOT NULL DEFAULT '',
			structural_id TEXT NOT NULL UNIQUE,
			finding_id TEXT NOT NULL DEFAULT '',
			offset_start INTEGER NOT NULL,
			offset_end INTEGER NOT NULL,
			position INTEGER NOT NULL,
			checksum INTEGER NOT NULL,
			snippet_before BLOB,
			snippet_matching BLOB,
			snippet_after BLOB
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_matches_blob_id ON matches(blob_id)
	`)
	return err
}

func createFindingsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS findings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			structural_id TEXT NOT NULL UNIQUE,
			rule_id TEXT NOT NULL,
			matched_window BLOB,
			checksum INTEGER NOT NULL
		)
	`)
	return err
}

func createProvenanceTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS provenance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blob_id TEXT NOT NULL REFERENCES blobs(id),
			type TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			repo_path TEXT NOT NULL DEFAULT '',
			commit_hash TEXT NOT NULL DEFAULT '',
			member_path TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '',
			UNIQUE(blob_id, type, path, repo_path, commit_hash, member_path, payload_json)
		)
	`)
	if err != nil {
		return err
	}

	// Create index for efficient provenance lookup by blob_id
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_provenance_blob_id ON provenance(blob_id)
	`)
	return err
}
