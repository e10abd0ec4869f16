// Package sqlite provides a SQLite-backed chat storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/dkeye/TeamChat/internal/storage"
	"github.com/dkeye/TeamChat/internal/storage/sqlite/migrations"
	"github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists messages and polls in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite chat store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer connection keeps poll updates strictly sequential.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Str("module", "storage.sqlite").Str("path", cleanPath).Msg("store opened")
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Kind() string { return "sqlite" }

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) SaveMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (room, user_name, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(msg.Room),
		msg.User,
		string(msg.Role),
		msg.Text,
		toMillis(msg.CreatedAt),
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

func (s *Store) GetMessages(ctx context.Context, room domain.RoomName, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT room, user_name, role, text, created_at
		   FROM messages
		  WHERE room = ?
		  ORDER BY id DESC
		  LIMIT ?`,
		string(room),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []domain.Message
	for rows.Next() {
		var (
			msg       domain.Message
			roomName  string
			role      string
			createdAt int64
		)
		if err := rows.Scan(&roomName, &msg.User, &role, &msg.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Room = domain.RoomName(roomName)
		msg.Role = domain.Role(role)
		msg.CreatedAt = fromMillis(createdAt)
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	out := make([]domain.Message, len(newestFirst))
	for i, msg := range newestFirst {
		out[len(newestFirst)-1-i] = msg
	}
	return out, nil
}

func (s *Store) SavePoll(ctx context.Context, poll domain.Poll) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return domain.Poll{}, fmt.Errorf("encode poll options: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO polls (id, room, question, options, is_closed, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		poll.ID,
		string(poll.Room),
		poll.Question,
		string(options),
		poll.IsClosed,
		toMillis(poll.CreatedAt),
		poll.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Poll{}, storage.ErrAlreadyExists
		}
		return domain.Poll{}, fmt.Errorf("save poll: %w", err)
	}
	return poll.Clone(), nil
}

const pollColumns = `id, room, question, options, is_closed, created_at, created_by`

func (s *Store) GetPoll(ctx context.Context, id string) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id)
	return scanPoll(row)
}

func (s *Store) GetActivePoll(ctx context.Context, room domain.RoomName) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+pollColumns+` FROM polls WHERE room = ? AND is_closed = 0 ORDER BY created_at DESC LIMIT 1`,
		string(room),
	)
	return scanPoll(row)
}

// UpdatePoll applies update in one transaction so an option set is never
// written partially.
func (s *Store) UpdatePoll(ctx context.Context, id string, update storage.PollUpdate) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Poll{}, fmt.Errorf("begin poll update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := scanPoll(tx.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id)); err != nil {
		return domain.Poll{}, err
	}
	if update.Options != nil {
		options, err := json.Marshal(update.Options)
		if err != nil {
			return domain.Poll{}, fmt.Errorf("encode poll options: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE polls SET options = ? WHERE id = ?`, string(options), id); err != nil {
			return domain.Poll{}, fmt.Errorf("update poll options: %w", err)
		}
	}
	if update.IsClosed != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE polls SET is_closed = ? WHERE id = ?`, *update.IsClosed, id); err != nil {
			if isUniqueViolation(err) {
				return domain.Poll{}, storage.ErrAlreadyExists
			}
			return domain.Poll{}, fmt.Errorf("update poll state: %w", err)
		}
	}
	updated, err := scanPoll(tx.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
	if err != nil {
		return domain.Poll{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Poll{}, fmt.Errorf("commit poll update: %w", err)
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (domain.Poll, error) {
	var (
		poll      domain.Poll
		room      string
		options   string
		createdAt int64
	)
	err := row.Scan(&poll.ID, &room, &poll.Question, &options, &poll.IsClosed, &createdAt, &poll.CreatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Poll{}, storage.ErrNotFound
		}
		return domain.Poll{}, fmt.Errorf("scan poll: %w", err)
	}
	if err := json.Unmarshal([]byte(options), &poll.Options); err != nil {
		return domain.Poll{}, fmt.Errorf("decode poll options: %w", err)
	}
	for i := range poll.Options {
		if poll.Options[i].Voters == nil {
			poll.Options[i].Voters = []string{}
		}
	}
	poll.Room = domain.RoomName(room)
	poll.CreatedAt = fromMillis(createdAt)
	return poll, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
