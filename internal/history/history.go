// Package history provides SQLite-based persistence for chat messages.
// If opening the DB or executing queries fails, the store falls back to
// in-memory storage.
package history

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/ecofarmcast-go/internal/logger"
)

// Store is an append-only archive of transcript turns.
type Store struct {
	mu       sync.Mutex
	messages []Message // in-memory fallback

	db *sql.DB
}

// Open opens the SQLite database at path and creates the messages table if
// it doesn't exist. An empty path, or any failure, yields a memory-only store.
func Open(path string) *Store {
	s := &Store{}
	if path == "" {
		logger.L.Info("history DB path not set; using in-memory history")
		return s
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return s
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT,
        message_id TEXT,
        role TEXT,
        content TEXT,
        is_error INTEGER,
        created_at DATETIME
    );`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		db.Close()
		return s
	}
	logger.L.Info("sqlite history DB initialized", "path", path)
	s.db = db
	return s
}

// Persistent reports whether messages reach the database.
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Save persists a message to the SQLite database when available and always keeps
// an in-memory copy as fallback.
func (s *Store) Save(msg Message) {
	if s.db != nil {
		_, err := s.db.Exec(`INSERT INTO messages (session_id, message_id, role, content, is_error, created_at) VALUES (?,?,?,?,?,?);`,
			msg.SessionID, msg.MessageID, msg.Role, msg.Content, msg.IsError, msg.CreatedAt)
		if err != nil {
			logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// List returns all messages of a session in chronological order.
func (s *Store) List(sessionID string) []Message {
	out := []Message{}
	if s.db != nil {
		rows, err := s.db.Query(`SELECT id, session_id, message_id, role, content, is_error, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				var m Message
				if err := rows.Scan(&m.ID, &m.SessionID, &m.MessageID, &m.Role, &m.Content, &m.IsError, &m.CreatedAt); err == nil {
					out = append(out, m)
				} else {
					logger.L.Warn("skipping unreadable history row", "error", err)
				}
			}
			return out
		}
		logger.L.Error("history query failed; reading memory copy", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
