package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/ggonzalez94/bark-bot/internal/model"
)

// SQLiteStore implements Store on a local sqlite file. Writes are guarded by
// a file lock so concurrent bot processes sharing a database do not clobber
// each other.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create wallet directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite wallet store: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"CREATE TABLE IF NOT EXISTS wallets (user_id TEXT PRIMARY KEY, address TEXT NOT NULL, updated_at INTEGER NOT NULL);",
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init wallet schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, lock: flock.New(lockPath)}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, userID model.UserID) (*Record, error) {
	var address string
	var updatedUnix int64
	err := s.db.QueryRowContext(ctx,
		"SELECT address, updated_at FROM wallets WHERE user_id = ?", string(userID),
	).Scan(&address, &updatedUnix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("wallet read: %w", err)
	}
	return &Record{
		UserID:    userID,
		Address:   address,
		UpdatedAt: time.Unix(updatedUnix, 0).UTC(),
	}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, userID model.UserID, address string) error {
	locked, err := s.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock wallet store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock wallet store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, address, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			address=excluded.address,
			updated_at=excluded.updated_at
	`, string(userID), address, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("wallet write: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context, userID model.UserID) error {
	locked, err := s.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock wallet store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock wallet store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM wallets WHERE user_id = ?", string(userID)); err != nil {
		return fmt.Errorf("wallet delete: %w", err)
	}
	return nil
}
