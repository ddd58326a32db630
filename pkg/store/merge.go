//go:build !wasm

package store

import (
	"database/sql"
	"fmt"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	BlobsMerged      int
	RulesMerged      int
	MatchesMerged    int
	FindingsMerged   int
	ProvenanceMerged int
	SourcesProcessed int
}

// Merge combines multiple scan databases into one.
// Deduplication is handled via INSERT OR IGNORE on unique keys.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	destDB, err := sql.Open(driverName, cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer destDB.Close()
	destDB.SetMaxOpenConns(1)

	if err := CreateSchema(destDB); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	stats := &MergeStats{}

	for _, sourcePath := range cfg.SourcePaths {
		sourceStats, err := mergeFrom(destDB, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.BlobsMerged += sourceStats.BlobsMerged
		stats.RulesMerged += sourceStats.RulesMerged
		stats.MatchesMerged += sourceStats.MatchesMerged
		stats.FindingsMerged += sourceStats.FindingsMerged
		stats.ProvenanceMerged += sourceStats.ProvenanceMerged
		stats.SourcesProcessed++
	}

	return stats, nil
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	sourceDB, err := sql.Open(driverName, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	version, err := ReadSchemaVersion(sourceDB)
	if err != nil {
		return nil, err
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("schema version %d, expected %d", version, SchemaVersion)
	}

	stats := &MergeStats{}

	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		name    string
		columns string
		table   string
		count   *int
	}{
		{"blobs", "id, size", "blobs", &stats.BlobsMerged},
		{"rules", "id, name, signature, sig_offset, structural_id", "rules", &stats.RulesMerged},
		{"matches", "blob_id, rule_id, rule_name, structural_id, finding_id, offset_start, offset_end, position, checksum, snippet_before, snippet_matching, snippet_after", "matches", &stats.MatchesMerged},
		{"findings", "structural_id, rule_id, matched_window, checksum", "findings", &stats.FindingsMerged},
		{"provenance", "blob_id, type, path, repo_path, commit_hash, member_path, payload_json", "provenance", &stats.ProvenanceMerged},
	}
	for _, step := range steps {
		n, err := copyRows(tx, sourceDB, step.table, step.columns)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", step.name, err)
		}
		*step.count = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return stats, nil
}

// copyRows inserts every row of table from sourceDB into tx, ignoring rows
// that collide with a unique key. It returns the number of rows inserted.
func copyRows(tx *sql.Tx, sourceDB *sql.DB, table, columns string) (int, error) {
	rows, err := sourceDB.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", columns, table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	placeholders := "?"
	for range cols[1:] {
		placeholders += ", ?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columns, placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
