// Package session persists the agent's server identity across restarts.
package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Session is the agent's stored identity: who it is on the server and
// which cluster it belongs to.
type Session struct {
	UserID       uint
	Token        string
	ClusterToken string
	About        string
}

// Store is the SQLite-backed session store. It holds at most one row.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the session database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		cluster_token TEXT NOT NULL,
		about TEXT NOT NULL DEFAULT ''
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the stored session, or nil if the agent has never
// registered.
func (s *Store) Load() (*Session, error) {
	row := s.db.QueryRow(
		`SELECT user_id, token, cluster_token, about FROM sessions WHERE id = 1`)

	var sess Session
	err := row.Scan(&sess.UserID, &sess.Token, &sess.ClusterToken, &sess.About)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

// Save stores the session, replacing any previous one.
func (s *Store) Save(sess *Session) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, user_id, token, cluster_token, about)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			token = excluded.token,
			cluster_token = excluded.cluster_token,
			about = excluded.about`,
		sess.UserID, sess.Token, sess.ClusterToken, sess.About)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = 1`)
	return err
}
