package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/soyeahso/cupid/internal/domain"
)

// NotesArchive keeps every delivered note idea with full-text search via
// SQLite FTS5.
type NotesArchive struct {
	db *DB
}

// Save stores the notes of one delivery in a single transaction.
func (n *NotesArchive) Save(notes []domain.Note) error {
	if len(notes) == 0 {
		return nil
	}
	tx, err := n.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin notes insert: %w", err)
	}
	for _, note := range notes {
		created := note.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.Exec(
			`INSERT INTO notes (session_id, chat_key, position, text, signature, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			note.SessionID, note.ChatKey, note.Position, note.Text, note.Signature,
			created.UTC().Format(timeLayout),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("saving note: %w", err)
		}
	}
	return tx.Commit()
}

// Search finds notes matching an FTS5 query, best match first. Limit of 0
// defaults to 20.
func (n *NotesArchive) Search(query string, limit int) ([]domain.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := n.db.sql.Query(
		`SELECT n.id, n.session_id, n.chat_key, n.position, n.text, n.signature, n.created_at
		 FROM notes_fts
		 JOIN notes n ON n.id = notes_fts.rowid
		 WHERE notes_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// BySession returns the notes delivered in a session, in delivery order.
func (n *NotesArchive) BySession(sessionID string) ([]domain.Note, error) {
	rows, err := n.db.sql.Query(
		`SELECT id, session_id, chat_key, position, text, signature, created_at
		 FROM notes WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// Recent returns the newest notes. Limit of 0 defaults to 20.
func (n *NotesArchive) Recent(limit int) ([]domain.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := n.db.sql.Query(
		`SELECT id, session_id, chat_key, position, text, signature, created_at
		 FROM notes ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

func scanNotes(rows *sql.Rows) ([]domain.Note, error) {
	var notes []domain.Note
	for rows.Next() {
		var note domain.Note
		var created string
		if err := rows.Scan(
			&note.ID, &note.SessionID, &note.ChatKey, &note.Position,
			&note.Text, &note.Signature, &created,
		); err != nil {
			return nil, err
		}
		note.CreatedAt, _ = time.Parse(timeLayout, created)
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
