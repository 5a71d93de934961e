// Package flash stores values that one request leaves for the next request
// of the same session, such as scripts the control panel should run after a
// redirect. Flashes are read once: draining them deletes them.
package flash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Kind separates the collections a session's flashes are kept in.
type Kind string

const (
	// KindJSResource flashes are resource paths of scripts to include.
	KindJSResource Kind = "js_resource"
	// KindJS flashes are inline script snippets.
	KindJS Kind = "js"
)

// SetupSchema creates the flash table. It is idempotent.
func SetupSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS flashes (
    id          INTEGER PRIMARY KEY,
    session_id  TEXT    NOT NULL,
    kind        TEXT    NOT NULL,
    value       TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_flashes_session ON flashes (session_id, kind);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("could not create flash schema: %w", err)
	}
	return nil
}

// Store reads and writes flashes in a SQLite database.
type Store struct {
	db          *sql.DB
	logger      *slog.Logger
	stmtAdd     *sql.Stmt
	stmtList    *sql.Stmt
	stmtDelete  *sql.Stmt
	stmtExpired *sql.Stmt
}

// NewStore prepares the statements used by the store. SetupSchema must have
// been run on db.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}
	var err error
	if s.stmtAdd, err = db.Prepare("INSERT INTO flashes (session_id, kind, value, created_at) VALUES (?, ?, ?, ?)"); err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	if s.stmtList, err = db.Prepare("SELECT value FROM flashes WHERE session_id = ? AND kind = ? ORDER BY id"); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare list statement: %w", err)
	}
	if s.stmtDelete, err = db.Prepare("DELETE FROM flashes WHERE session_id = ? AND kind = ?"); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	if s.stmtExpired, err = db.Prepare("DELETE FROM flashes WHERE created_at < ?"); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare expiry statement: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{s.stmtAdd, s.stmtList, s.stmtDelete, s.stmtExpired} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// Add queues a flash for the session.
func (s *Store) Add(ctx context.Context, sessionID string, kind Kind, value string) error {
	if sessionID == "" {
		return errors.New("flash requires a session id")
	}
	if _, err := s.stmtAdd.ExecContext(ctx, sessionID, string(kind), value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to add %s flash: %w", kind, err)
	}
	return nil
}

// AddJSResource queues a script resource path for the session's next page.
func (s *Store) AddJSResource(ctx context.Context, sessionID, path string) error {
	return s.Add(ctx, sessionID, KindJSResource, path)
}

// AddJS queues a script snippet for the session's next page.
func (s *Store) AddJS(ctx context.Context, sessionID, js string) error {
	return s.Add(ctx, sessionID, KindJS, js)
}

// Drain returns the session's flashes of one kind, oldest first, and deletes them.
func (s *Store) Drain(ctx context.Context, sessionID string, kind Kind) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	rows, err := tx.StmtContext(ctx, s.stmtList).QueryContext(ctx, sessionID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s flashes: %w", kind, err)
	}
	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan flash: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to read flashes: %w", err)
	}
	_ = rows.Close()

	if len(values) == 0 {
		return nil, nil
	}
	if _, err := tx.StmtContext(ctx, s.stmtDelete).ExecContext(ctx, sessionID, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to delete %s flashes: %w", kind, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return values, nil
}

// Expire deletes flashes older than maxAge that were never drained and
// returns how many were removed.
func (s *Store) Expire(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.stmtExpired.ExecContext(ctx, time.Now().Add(-maxAge).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to expire flashes: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("Expired stale flashes", "count", n)
	}
	return n, nil
}

// Session returns the flashes of one session bound to ctx. It satisfies
// templating.FlashStore.
func (s *Store) Session(ctx context.Context, sessionID string) *Session {
	return &Session{store: s, ctx: ctx, id: sessionID}
}

// Session is the flash view of a single session during one request.
type Session struct {
	store *Store
	ctx   context.Context
	id    string
}

// JSResourceFlashes drains the session's script resource paths.
func (s *Session) JSResourceFlashes() ([]string, error) {
	return s.store.Drain(s.ctx, s.id, KindJSResource)
}

// JSFlashes drains the session's script snippets.
func (s *Session) JSFlashes() ([]string, error) {
	return s.store.Drain(s.ctx, s.id, KindJS)
}
