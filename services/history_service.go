package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github/itish2003/repair-agent/models"

	_ "modernc.org/sqlite"
)

// HistoryStore is the per-user, append-only conversation log.
type HistoryStore interface {
	Append(ctx context.Context, userID, role, text string) error
	LastN(ctx context.Context, userID string, n int) ([]models.ChatTurn, error)
}

// SQLiteHistory stores chat turns in a local SQLite database. Appends for
// the same user are serialized so concurrent requests cannot interleave a
// user's turn order.
type SQLiteHistory struct {
	db *sql.DB

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

const historySchema = `
CREATE TABLE IF NOT EXISTS chat_turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chat_turns_user ON chat_turns(user_id, id);
`

// NewSQLiteHistory opens (and if needed creates) the history database.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &SQLiteHistory{
		db:        db,
		userLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the underlying database handle.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

func (h *SQLiteHistory) lockFor(userID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		h.userLocks[userID] = l
	}
	return l
}

// Append implements HistoryStore.
func (h *SQLiteHistory) Append(ctx context.Context, userID, role, text string) error {
	l := h.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO chat_turns (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		userID, role, text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append chat turn for user %s: %w", userID, err)
	}
	return nil
}

// LastN implements HistoryStore. Turns are returned in chronological order.
func (h *SQLiteHistory) LastN(ctx context.Context, userID string, n int) ([]models.ChatTurn, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT user_id, role, content, created_at FROM chat_turns
		 WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history for user %s: %w", userID, err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		if err := rows.Scan(&t.UserID, &t.Role, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows arrive newest-first; reverse into insertion order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
