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

	"github.com/MimeLyc/doc-translator/internal/job"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore persists jobs and batch checkpoints in one SQLite file.
// It implements job.Store.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
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

	store := &SQLiteStore{db: db}
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

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, config_json, status, progress_done, progress_total, error, pid, report_path, log_path, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*job.Job, 0)
	for rows.Next() {
		var item job.Job
		var configJSON string
		var status string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&configJSON,
			&status,
			&item.Progress.Done,
			&item.Progress.Total,
			&item.Error,
			&item.PID,
			&item.ReportPath,
			&item.LogPath,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = job.Status(status)
		if err := json.Unmarshal([]byte(configJSON), &item.Config); err != nil {
			return nil, fmt.Errorf("decode config for job %s: %w", item.ID, err)
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, item *job.Job) error {
	if item == nil {
		return fmt.Errorf("job is nil")
	}
	configJSON, err := json.Marshal(item.Config)
	if err != nil {
		return fmt.Errorf("encode config for job %s: %w", item.ID, err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, config_json, status, progress_done, progress_total, error, pid, report_path, log_path, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			config_json=excluded.config_json,
			status=excluded.status,
			progress_done=excluded.progress_done,
			progress_total=excluded.progress_total,
			error=excluded.error,
			pid=excluded.pid,
			report_path=excluded.report_path,
			log_path=excluded.log_path,
			updated_at=excluded.updated_at`,
		item.ID,
		item.Source,
		item.DedupeKey,
		string(configJSON),
		string(item.Status),
		item.Progress.Done,
		item.Progress.Total,
		item.Error,
		item.PID,
		item.ReportPath,
		item.LogPath,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) SaveBatchCheckpoint(ctx context.Context, jobID, filePath string, batchIndex int, translated []string) error {
	payload, err := json.Marshal(translated)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO job_batch_checkpoints (job_id, file_path, batch_index, translated_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id, file_path, batch_index) DO UPDATE SET
			translated_json=excluded.translated_json,
			updated_at=excluded.updated_at`,
		jobID,
		filePath,
		batchIndex,
		string(payload),
		time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) LoadBatchCheckpoints(ctx context.Context, jobID, filePath string) ([]BatchCheckpoint, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, file_path, batch_index, translated_json, updated_at
		 FROM job_batch_checkpoints
		 WHERE job_id = ? AND file_path = ?
		 ORDER BY batch_index ASC`,
		jobID,
		filePath,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]BatchCheckpoint, 0)
	for rows.Next() {
		var item BatchCheckpoint
		var translatedJSON string
		if err := rows.Scan(&item.JobID, &item.FilePath, &item.BatchIndex, &translatedJSON, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(translatedJSON), &item.Translated); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteJobData removes all checkpoints recorded for a job.
func (s *SQLiteStore) DeleteJobData(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM job_batch_checkpoints WHERE job_id = ?`, jobID)
	return err
}

// Checkpoints returns a view of the store scoped to one job and input
// file, shaped for the scheduler. Existing checkpoints are loaded
// once up front; Save failures are reported to the caller and the run
// continues without the checkpoint.
func (s *SQLiteStore) Checkpoints(ctx context.Context, jobID, filePath string) (*FileCheckpoints, error) {
	loaded, err := s.LoadBatchCheckpoints(ctx, jobID, filePath)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints for %s: %w", filePath, err)
	}
	restored := make(map[int][]string, len(loaded))
	for _, cp := range loaded {
		restored[cp.BatchIndex] = cp.Translated
	}
	if len(restored) > 0 {
		log.Info("Restored %d batch checkpoints for %s", len(restored), filePath)
	}
	return &FileCheckpoints{
		store:    s,
		jobID:    jobID,
		filePath: filePath,
		restored: restored,
	}, nil
}

// FileCheckpoints adapts the store to the scheduler's checkpoint
// interface for a single (job, file) pair.
type FileCheckpoints struct {
	store    *SQLiteStore
	jobID    string
	filePath string
	restored map[int][]string
}

func (f *FileCheckpoints) Load(batchIndex int) ([]string, bool) {
	translated, ok := f.restored[batchIndex]
	return translated, ok
}

func (f *FileCheckpoints) Save(ctx context.Context, batchIndex int, translated []string) error {
	return f.store.SaveBatchCheckpoint(ctx, f.jobID, f.filePath, batchIndex, translated)
}

var _ job.Store = (*SQLiteStore)(nil)
