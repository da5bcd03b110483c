package snapcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"dlpanel/internal/api"
	"dlpanel/internal/logging"
)

const (
	// DBFileName is the database file created under the state directory.
	DBFileName   = "snapshots.db"
	lockFileName = "snapshots.lock"

	kindJobs          = "jobs"
	kindSubscriptions = "subscriptions"

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists the last good snapshots.
type Store struct {
	db       *sql.DB
	path     string
	lock     *flock.Flock
	readOnly bool
	// ready is false for a read-only store whose database was never initialized.
	ready  bool
	logger *slog.Logger
}

// Open opens (creating if needed) the snapshot cache under dir. When another
// process already holds the writer lock the store is opened read-only.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("snapshot cache: state directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	store := &Store{
		path:   filepath.Join(dir, DBFileName),
		lock:   flock.New(filepath.Join(dir, lockFileName)),
		logger: logging.NewComponentLogger(logger, "snapcache"),
	}
	locked, err := store.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire snapshot cache lock: %w", err)
	}
	store.readOnly = !locked
	if store.readOnly {
		store.logger.Debug("snapshot cache locked by another process; opening read-only",
			logging.String("db_path", store.path),
		)
	}

	db, err := sql.Open("sqlite", store.path)
	if err != nil {
		store.releaseLock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store.db = db

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if !store.readOnly {
		pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ready, err := store.initSchema(context.Background())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	store.ready = ready
	return store, nil
}

// ReadOnly reports whether saves are being skipped because another process owns the cache.
func (s *Store) ReadOnly() bool {
	return s != nil && s.readOnly
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the writer lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	s.releaseLock()
	return err
}

func (s *Store) releaseLock() {
	if s.lock == nil || s.readOnly {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release snapshot cache lock", logging.Error(err))
	}
}

// SaveJobs replaces the cached job snapshot.
func (s *Store) SaveJobs(ctx context.Context, snap api.JobsSnapshot) error {
	if s.readOnly {
		return nil
	}
	rows := make([][]any, 0, len(snap.Jobs))
	for i, job := range snap.Jobs {
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", job.ID, err)
		}
		rows = append(rows, []any{i, job.ID, string(job.Status), string(payload)})
	}
	return s.replace(ctx, kindJobs, "jobs", "INSERT INTO jobs (position, job_id, status, payload) VALUES (?, ?, ?, ?)",
		rows, snap.Pending, snap.Running, snap.Total)
}

// SaveSubscriptions replaces the cached subscription list.
func (s *Store) SaveSubscriptions(ctx context.Context, subs []api.Subscription) error {
	if s.readOnly {
		return nil
	}
	rows := make([][]any, 0, len(subs))
	for i, sub := range subs {
		payload, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("encode subscription %s: %w", sub.ID, err)
		}
		rows = append(rows, []any{i, sub.ID, string(payload)})
	}
	return s.replace(ctx, kindSubscriptions, "subscriptions",
		"INSERT INTO subscriptions (position, subscription_id, payload) VALUES (?, ?, ?)",
		rows, 0, 0, len(subs))
}

func (s *Store) replace(ctx context.Context, kind, table, insert string, rows [][]any, pending, running, total int) error {
	ctx = ensureContext(ctx)
	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta (kind, saved_at, pending, running, total)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(kind) DO UPDATE SET saved_at = excluded.saved_at, pending = excluded.pending,
				running = excluded.running, total = excluded.total`,
			kind, savedAt, pending, running, total); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save %s snapshot: %w", kind, err)
	}
	return nil
}

// LoadJobs returns the cached job snapshot and when it was saved. ok is false
// when nothing was ever cached.
func (s *Store) LoadJobs(ctx context.Context) (snap api.JobsSnapshot, savedAt time.Time, ok bool, err error) {
	ctx = ensureContext(ctx)
	savedAt, ok, err = s.meta(ctx, kindJobs, &snap)
	if err != nil || !ok {
		return api.JobsSnapshot{}, time.Time{}, ok, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM jobs ORDER BY position")
	if err != nil {
		return api.JobsSnapshot{}, time.Time{}, false, fmt.Errorf("load jobs snapshot: %w", err)
	}
	defer rows.Close()
	snap.Jobs = []api.Job{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return api.JobsSnapshot{}, time.Time{}, false, fmt.Errorf("scan cached job: %w", err)
		}
		var job api.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			s.logger.Debug("skipping unreadable cached job", logging.Error(err))
			continue
		}
		snap.Jobs = append(snap.Jobs, job)
	}
	if err := rows.Err(); err != nil {
		return api.JobsSnapshot{}, time.Time{}, false, fmt.Errorf("load jobs snapshot: %w", err)
	}
	return snap, savedAt, true, nil
}

// LoadSubscriptions returns the cached subscription list.
func (s *Store) LoadSubscriptions(ctx context.Context) (subs []api.Subscription, savedAt time.Time, ok bool, err error) {
	ctx = ensureContext(ctx)
	savedAt, ok, err = s.meta(ctx, kindSubscriptions, nil)
	if err != nil || !ok {
		return nil, time.Time{}, ok, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM subscriptions ORDER BY position")
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load subscriptions snapshot: %w", err)
	}
	defer rows.Close()
	subs = []api.Subscription{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, time.Time{}, false, fmt.Errorf("scan cached subscription: %w", err)
		}
		var sub api.Subscription
		if err := json.Unmarshal([]byte(payload), &sub); err != nil {
			s.logger.Debug("skipping unreadable cached subscription", logging.Error(err))
			continue
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load subscriptions snapshot: %w", err)
	}
	return subs, savedAt, true, nil
}

func (s *Store) meta(ctx context.Context, kind string, counters *api.JobsSnapshot) (time.Time, bool, error) {
	if !s.ready {
		return time.Time{}, false, nil
	}
	var (
		savedAt                 string
		pending, running, total int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT saved_at, pending, running, total FROM snapshot_meta WHERE kind = ?", kind,
	).Scan(&savedAt, &pending, &running, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read %s snapshot metadata: %w", kind, err)
	}
	if counters != nil {
		counters.Pending, counters.Running, counters.Total = pending, running, total
	}
	ts, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		ts = time.Time{}
	}
	return ts, true, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries op with exponential backoff while SQLite reports busy.
func retryOnBusy(ctx context.Context, op func() error) error {
	ctx = ensureContext(ctx)
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
