package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/olegiv/cvslog-analyzer/internal/classification"
	"github.com/olegiv/cvslog-analyzer/internal/rcslog"
	_ "modernc.org/sqlite"
)

// Storage handles database operations
type Storage struct {
	db *sql.DB
}

// Parse describes one stored parse of a log dump.
type Parse struct {
	ID          int64
	ContentHash string
	SourcePath  string
	ParsedAt    time.Time
	RecordCount int
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute
)

// New creates a new storage instance
func New(dbPath string) (*Storage, error) {
	// Create directory if it doesn't exist (0700 - owner only)
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations.
const currentSchemaVersion = 2

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	if err := s.migrateSchema(s.getSchemaVersion()); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

// setSchemaVersion updates the schema version
func (s *Storage) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	log.Printf("storage: migrating schema from version %d to %d", currentVersion, currentSchemaVersion)

	// Migration 0 -> 1: parses and revisions
	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	// Migration 1 -> 2: classification mappings
	if currentVersion < 2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	log.Printf("storage: schema migration completed successfully (now at version %d)", currentSchemaVersion)
	return nil
}

// migrateV1 creates the parses and revisions tables
func (s *Storage) migrateV1() error {
	log.Printf("storage: running migration v1 - create parse tables")

	schema := `
	CREATE TABLE IF NOT EXISTS parses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_hash TEXT NOT NULL UNIQUE,
		source_path TEXT NOT NULL DEFAULT '',
		parsed_at TEXT NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS revisions (
		parse_id INTEGER NOT NULL REFERENCES parses(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		repository_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		revision_id TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		time TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		is_structured INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		minutes REAL,
		comment TEXT NOT NULL DEFAULT '',
		facility TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (parse_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_parsed_at ON parses(parsed_at);
	CREATE INDEX IF NOT EXISTS idx_revisions_category ON revisions(category);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the classification_mappings table
func (s *Storage) migrateV2() error {
	log.Printf("storage: running migration v2 - add classification_mappings table")

	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS classification_mappings (
		old_category TEXT PRIMARY KEY,
		new_category TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

// SaveParse stores the records parsed from content identified by contentHash.
// A previous parse with the same hash is replaced.
func (s *Storage) SaveParse(contentHash, sourcePath string, records []rcslog.Record) (*Parse, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM revisions WHERE parse_id IN (SELECT id FROM parses WHERE content_hash = ?)`, contentHash); err != nil {
		return nil, fmt.Errorf("failed to delete previous revisions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM parses WHERE content_hash = ?`, contentHash); err != nil {
		return nil, fmt.Errorf("failed to delete previous parse: %w", err)
	}

	parse := &Parse{
		ContentHash: contentHash,
		SourcePath:  sourcePath,
		ParsedAt:    time.Now(),
		RecordCount: len(records),
	}

	result, err := tx.Exec(
		`INSERT INTO parses (content_hash, source_path, parsed_at, record_count) VALUES (?, ?, ?, ?)`,
		parse.ContentHash, parse.SourcePath, parse.ParsedAt.Format(time.RFC3339), parse.RecordCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert parse: %w", err)
	}

	parse.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO revisions (
			parse_id, seq, repository_path, file_name, revision_id, author,
			date, time, message, is_structured, category, minutes, comment,
			facility, region
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare revision insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		var minutes interface{}
		if r.Minutes != nil {
			minutes = *r.Minutes
		}
		if _, err := stmt.Exec(
			parse.ID, i, r.RepositoryPath, r.FileName, r.RevisionID, r.Author,
			r.Date, r.Time, r.Message, r.IsStructured, r.Category, minutes, r.Comment,
			r.Facility, r.Region,
		); err != nil {
			return nil, fmt.Errorf("failed to insert revision %s of %s: %w", r.RevisionID, r.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit parse: %w", err)
	}

	return parse, nil
}

// HasParse reports whether records for contentHash are stored.
func (s *Storage) HasParse(contentHash string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM parses WHERE content_hash = ?`, contentHash).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query parses: %w", err)
	}
	return count > 0, nil
}

// LoadRecords returns the stored records for contentHash in log order.
// A hash that was never saved yields nil and no error.
func (s *Storage) LoadRecords(contentHash string) ([]rcslog.Record, error) {
	rows, err := s.db.Query(`
		SELECT r.repository_path, r.file_name, r.revision_id, r.author, r.date, r.time,
		       r.message, r.is_structured, r.category, r.minutes, r.comment,
		       r.facility, r.region
		FROM revisions r
		JOIN parses p ON p.id = r.parse_id
		WHERE p.content_hash = ?
		ORDER BY r.seq
	`, contentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer func(rows *sql.Rows) {
		err = rows.Close()
		if err != nil {
			log.Printf("storage: failed to close database rows: %v", err)
		}
	}(rows)

	var records []rcslog.Record
	for rows.Next() {
		var (
			r       rcslog.Record
			minutes sql.NullFloat64
		)
		if err := rows.Scan(
			&r.RepositoryPath, &r.FileName, &r.RevisionID, &r.Author, &r.Date, &r.Time,
			&r.Message, &r.IsStructured, &r.Category, &minutes, &r.Comment,
			&r.Facility, &r.Region,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if minutes.Valid {
			v := minutes.Float64
			r.Minutes = &v
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// SaveMapping persists every entry of m, replacing entries with the same key.
func (s *Storage) SaveMapping(m *classification.Mapping) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Format(time.RFC3339)
	for old, target := range m.Entries() {
		if _, err := tx.Exec(`
			INSERT INTO classification_mappings (old_category, new_category, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(old_category) DO UPDATE SET new_category = excluded.new_category, updated_at = excluded.updated_at
		`, old, target, now); err != nil {
			return fmt.Errorf("failed to save mapping %s: %w", old, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mapping: %w", err)
	}
	return nil
}

// LoadMapping returns the stored mapping.
func (s *Storage) LoadMapping() (*classification.Mapping, error) {
	rows, err := s.db.Query(`SELECT old_category, new_category FROM classification_mappings ORDER BY old_category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func(rows *sql.Rows) {
		err = rows.Close()
		if err != nil {
			log.Printf("storage: failed to close database rows: %v", err)
		}
	}(rows)

	m := classification.NewMapping()
	for rows.Next() {
		var old, target string
		if err := rows.Scan(&old, &target); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.Set(old, target)
	}

	return m, rows.Err()
}

// ClearMapping deletes every stored mapping entry.
func (s *Storage) ClearMapping() error {
	if _, err := s.db.Exec(`DELETE FROM classification_mappings`); err != nil {
		return fmt.Errorf("failed to clear mappings: %w", err)
	}
	return nil
}

// CleanupOldParses deletes parses (and their revisions) older than N days
func (s *Storage) CleanupOldParses(days int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	if _, err := s.db.Exec(`DELETE FROM revisions WHERE parse_id IN (SELECT id FROM parses WHERE parsed_at < ?)`, cutoffDate); err != nil {
		return 0, fmt.Errorf("failed to cleanup old revisions: %w", err)
	}

	result, err := s.db.Exec(`DELETE FROM parses WHERE parsed_at < ?`, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old parses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// GetStatistics returns database statistics
func (s *Storage) GetStatistics() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var parses, revisions, mappings int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM parses`).Scan(&parses); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM revisions`).Scan(&revisions); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM classification_mappings`).Scan(&mappings); err != nil {
		return nil, err
	}
	stats["total_parses"] = parses
	stats["total_revisions"] = revisions
	stats["total_mappings"] = mappings

	// Structured category distribution across all stored parses
	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM revisions WHERE category != '' GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		err = rows.Close()
		if err != nil {
			log.Printf("storage: failed to close database rows: %v", err)
		}
	}(rows)

	categoryDist := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		categoryDist[category] = count
	}
	stats["category_distribution"] = categoryDist

	return stats, rows.Err()
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
