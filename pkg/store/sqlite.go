//go:build !wasm

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/aobscan/pkg/types"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql name of the pure-Go SQLite driver.
const driverName = "sqlite"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
// Use ":memory:" for an in-memory database (useful for testing).
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: each ":memory:" connection is its own database, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddBlob stores a blob record.
func (s *SQLiteStore) AddBlob(id types.BlobID, size int64) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO blobs (id, size) VALUES (?, ?)", id.Hex(), size)
	if err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

// AddRule stores a rule, replacing an earlier definition with the same ID.
func (s *SQLiteStore) AddRule(r *types.Rule) error {
	sid := r.StructuralID
	if sid == "" {
		sid = r.ComputeStructuralID()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO rules (id, name, signature, sig_offset, structural_id)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Signature, r.Offset, sid)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// AddMatch stores a match record.
func (s *SQLiteStore) AddMatch(m *types.Match) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO matches (blob_id, rule_id, rule_name, structural_id, finding_id,
			offset_start, offset_end, position, checksum,
			snippet_before, snippet_matching, snippet_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.BlobID.Hex(),
		m.RuleID,
		m.RuleName,
		m.StructuralID,
		m.FindingID,
		m.Location.Offset.Start,
		m.Location.Offset.End,
		m.Position,
		int64(m.Checksum),
		m.Snippet.Before,
		m.Snippet.Matching,
		m.Snippet.After,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}

	return nil
}

// AddFinding stores a finding (deduplicated).
func (s *SQLiteStore) AddFinding(f *types.Finding) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO findings (structural_id, rule_id, matched_window, checksum)
		VALUES (?, ?, ?, ?)
	`,
		f.ID,
		f.RuleID,
		f.Window,
		int64(f.Checksum),
	)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}

	return nil
}

// provenanceRow is the flattened form of a types.Provenance.
type provenanceRow struct {
	kind       string
	path       string
	repoPath   string
	commitHash string
	memberPath string
	payload    string
}

func encodeProvenance(prov types.Provenance) (provenanceRow, error) {
	row := provenanceRow{}
	switch p := prov.(type) {
	case types.FileProvenance:
		row.path = p.FilePath
	case types.GitProvenance:
		row.repoPath = p.RepoPath
		row.path = p.BlobPath
		if p.Commit != nil {
			row.commitHash = p.Commit.CommitID
		}
	case types.ArchiveProvenance:
		row.path = p.ArchivePath
		row.memberPath = p.MemberPath
	case types.ExtendedProvenance:
		data, err := json.Marshal(p.Payload)
		if err != nil {
			return row, fmt.Errorf("marshaling payload: %w", err)
		}
		row.payload = string(data)
	default:
		return row, fmt.Errorf("unknown provenance type: %T", prov)
	}
	row.kind = prov.Kind()
	return row, nil
}

func (row provenanceRow) decode() (types.Provenance, error) {
	switch row.kind {
	case types.KindFile:
		return types.FileProvenance{FilePath: row.path}, nil
	case types.KindGit:
		p := types.GitProvenance{RepoPath: row.repoPath, BlobPath: row.path}
		if row.commitHash != "" {
			p.Commit = &types.CommitMetadata{CommitID: row.commitHash}
		}
		return p, nil
	case types.KindArchive:
		return types.ArchiveProvenance{ArchivePath: row.path, MemberPath: row.memberPath}, nil
	case types.KindExtended:
		p := types.ExtendedProvenance{}
		if row.payload != "" {
			if err := json.Unmarshal([]byte(row.payload), &p.Payload); err != nil {
				return nil, fmt.Errorf("unmarshaling payload: %w", err)
			}
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provenance type: %s", row.kind)
	}
}

// AddProvenance associates provenance with a blob.
func (s *SQLiteStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	row, err := encodeProvenance(prov)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO provenance (blob_id, type, path, repo_path, commit_hash, member_path, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		blobID.Hex(),
		row.kind,
		row.path,
		row.repoPath,
		row.commitHash,
		row.memberPath,
		row.payload,
	)
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}

	return nil
}

// GetProvenance retrieves the first provenance recorded for a blob.
func (s *SQLiteStore) GetProvenance(blobID types.BlobID) (types.Provenance, error) {
	var row provenanceRow
	err := s.db.QueryRow(`
		SELECT type, path, repo_path, commit_hash, member_path, payload_json
		FROM provenance
		WHERE blob_id = ?
		ORDER BY id
		LIMIT 1
	`, blobID.Hex()).Scan(&row.kind, &row.path, &row.repoPath, &row.commitHash, &row.memberPath, &row.payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no provenance found for blob %s", blobID.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	return row.decode()
}

const matchColumns = `blob_id, rule_id, rule_name, structural_id, finding_id,
	offset_start, offset_end, position, checksum,
	snippet_before, snippet_matching, snippet_after`

// GetMatches retrieves matches for a blob.
func (s *SQLiteStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches(`SELECT `+matchColumns+` FROM matches WHERE blob_id = ? ORDER BY id`, blobID.Hex())
}

// GetAllMatches retrieves all matches (for JSON export).
func (s *SQLiteStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches(`SELECT ` + matchColumns + ` FROM matches ORDER BY id`)
}

func (s *SQLiteStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []*types.Match{}
	for rows.Next() {
		var m types.Match
		var blobIDHex string
		var checksum int64

		err := rows.Scan(
			&blobIDHex,
			&m.RuleID,
			&m.RuleName,
			&m.StructuralID,
			&m.FindingID,
			&m.Location.Offset.Start,
			&m.Location.Offset.End,
			&m.Position,
			&checksum,
			&m.Snippet.Before,
			&m.Snippet.Matching,
			&m.Snippet.After,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		blobID, err := types.ParseBlobID(blobIDHex)
		if err != nil {
			return nil, fmt.Errorf("parsing blob ID: %w", err)
		}
		m.BlobID = blobID
		m.Checksum = uint32(checksum)

		matches = append(matches, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	return matches, nil
}

// GetFindings retrieves all findings with their matches (for reporting).
func (s *SQLiteStore) GetFindings() ([]*types.Finding, error) {
	rows, err := s.db.Query(`
		SELECT structural_id, rule_id, matched_window, checksum
		FROM findings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}

	var findings []*types.Finding
	byID := make(map[string]*types.Finding)
	for rows.Next() {
		var f types.Finding
		var checksum int64

		if err := rows.Scan(&f.ID, &f.RuleID, &f.Window, &checksum); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		f.Checksum = uint32(checksum)

		findings = append(findings, &f)
		byID[f.ID] = &f
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating findings: %w", err)
	}
	rows.Close()

	// The single connection must be free before querying matches.
	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if f, ok := byID[m.FindingID]; ok {
			f.Matches = append(f.Matches, m)
		}
	}

	return findings, nil
}

// FindingExists checks if a finding with this ID exists.
func (s *SQLiteStore) FindingExists(id string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM findings WHERE structural_id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking finding existence: %w", err)
	}
	return count > 0, nil
}

// BlobExists checks if a blob has already been scanned.
func (s *SQLiteStore) BlobExists(id types.BlobID) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM blobs WHERE id = ?", id.Hex()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking blob existence: %w", err)
	}
	return count > 0, nil
}

// DB exposes the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
