package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jus-team/legal-ocr-service/internal/batch"
	"github.com/jus-team/legal-ocr-service/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore persists batch job records as JSON blobs keyed by
// (owner_key, job_id). Every save refreshes the record's expiry, so a
// job's TTL counts from its last update, not its creation.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, ttl: ttl}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) SaveJob(ctx context.Context, job *batch.BatchJobRecord) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if job.ID == "" || job.OwnerKey == "" {
		return fmt.Errorf("job id and owner key are required")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}

	now := time.Now().UTC()
	createdAt := job.CreatedTime()
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO batch_jobs (owner_key, job_id, record_json, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_key, job_id) DO UPDATE SET
			record_json=excluded.record_json,
			expires_at=excluded.expires_at`,
		job.OwnerKey,
		job.ID,
		string(payload),
		createdAt,
		now.Add(s.ttl),
	)
	return err
}

func (s *SQLiteStore) GetJob(ctx context.Context, ownerKey, jobID string) (*batch.BatchJobRecord, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT record_json
		 FROM batch_jobs
		 WHERE owner_key = ? AND job_id = ? AND expires_at > ?`,
		ownerKey,
		jobID,
		time.Now().UTC(),
	)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	var record batch.BatchJobRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, false, fmt.Errorf("unmarshal job record: %w", err)
	}
	return &record, true, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, ownerKey string) ([]*batch.BatchJobRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, record_json
		 FROM batch_jobs
		 WHERE owner_key = ? AND expires_at > ?
		 ORDER BY created_at DESC`,
		ownerKey,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*batch.BatchJobRecord, 0)
	for rows.Next() {
		var jobID string
		var payload string
		if err := rows.Scan(&jobID, &payload); err != nil {
			return nil, err
		}
		var record batch.BatchJobRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			// A single corrupt row must not hide the rest of the history.
			log.Warn("Skipping malformed job record %s for owner %s: %v", jobID, ownerKey, err)
			continue
		}
		ret = append(ret, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteExpired removes batch_jobs rows whose expires_at is at or before now.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batch_jobs WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
