// Package sqlite stores transcripts in a local SQLite database for the
// standalone server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mimic-assistant/internal/domain"
)

// Store implements conversation persistence using SQLite.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and ensures the schema.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite: database path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		conversation_id TEXT PRIMARY KEY,
		turns INTEGER NOT NULL,
		privileged INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadLog(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, sent_at FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query messages: %w", err)
	}
	defer rows.Close()

	var log []domain.Message
	for rows.Next() {
		var (
			role    string
			content string
			sentAt  int64
		)
		if err := rows.Scan(&role, &content, &sentAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message row: %w", err)
		}
		log = append(log, domain.Message{
			Role:    domain.Role(role),
			Content: content,
			SentAt:  time.Unix(0, sentAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate messages: %w", err)
	}
	return log, nil
}

// SaveTurn inserts both messages and upserts the conversation row in one
// transaction. The turn must directly follow the stored turn count, otherwise
// domain.ErrTurnConflict is returned and nothing is written. Message sequence
// numbers derive from the turn number, so a replay also violates the primary
// key.
func (s *Store) SaveTurn(ctx context.Context, turn domain.CompletedTurn) error {
	if turn.Turns <= 0 {
		return errors.New("sqlite: turn number must be positive")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored int
	err = tx.QueryRowContext(ctx, `SELECT turns FROM conversations WHERE conversation_id = ?`, turn.ConversationID).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: read turn count: %w", err)
	}
	if turn.Turns != stored+1 {
		return fmt.Errorf("sqlite: conversation %s has %d turns, got turn %d: %w",
			turn.ConversationID, stored, turn.Turns, domain.ErrTurnConflict)
	}

	insert := `INSERT INTO messages (conversation_id, seq, role, content, sent_at) VALUES (?, ?, ?, ?, ?)`
	userSeq := turn.Turns*2 - 1
	if _, err := tx.ExecContext(ctx, insert, turn.ConversationID, userSeq,
		string(turn.User.Role), turn.User.Content, turn.User.SentAt.UnixNano()); err != nil {
		return fmt.Errorf("sqlite: insert user message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, turn.ConversationID, userSeq+1,
		string(turn.Reply.Role), turn.Reply.Content, turn.Reply.SentAt.UnixNano()); err != nil {
		return fmt.Errorf("sqlite: insert reply: %w", err)
	}

	upsert := `
	INSERT INTO conversations (conversation_id, turns, privileged, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(conversation_id) DO UPDATE SET
		turns = excluded.turns,
		privileged = MAX(conversations.privileged, excluded.privileged),
		updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, turn.ConversationID, turn.Turns,
		boolToInt(turn.Privileged), turn.Reply.SentAt.Unix()); err != nil {
		return fmt.Errorf("sqlite: upsert conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
