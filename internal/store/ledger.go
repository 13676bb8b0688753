package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/cupid/internal/domain"
)

// timeLayout keeps sub-second precision so ordering by text works.
const timeLayout = "2006-01-02 15:04:05.000"

// Ledger records session bookkeeping. It is written for observability only;
// conversations are never restored from it.
type Ledger struct {
	db *DB
}

// LedgerStats aggregates the ledger.
type LedgerStats struct {
	Sessions     int `json:"sessions"`
	Active       int `json:"active"`
	Ended        int `json:"ended"`
	UserMessages int `json:"userMessages"`
	BotMessages  int `json:"botMessages"`
	Notes        int `json:"notes"`
}

// Start inserts a new session row.
func (l *Ledger) Start(s domain.SessionSummary) error {
	_, err := l.db.sql.Exec(
		`INSERT INTO sessions (id, key_str, channel_id, account_id, chat_id, display_name,
		                       started_at, last_message_at, user_messages, bot_messages)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Key.String(), s.Key.ChannelID, s.Key.AccountID, s.Key.ChatID, s.DisplayName,
		s.StartedAt.UTC().Format(timeLayout), s.LastMessageAt.UTC().Format(timeLayout),
		s.UserMessages, s.BotMessages,
	)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", s.ID, err)
	}
	return nil
}

// Touch updates the counters and last activity of a session.
func (l *Ledger) Touch(id string, userMessages, botMessages int, at time.Time) error {
	_, err := l.db.sql.Exec(
		`UPDATE sessions SET user_messages = ?, bot_messages = ?, last_message_at = ? WHERE id = ?`,
		userMessages, botMessages, at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	return nil
}

// End marks a session ended. Ending twice keeps the first reason.
func (l *Ledger) End(id, reason string) error {
	_, err := l.db.sql.Exec(
		`UPDATE sessions SET ended = 1, end_reason = ? WHERE id = ? AND ended = 0`,
		reason, id,
	)
	if err != nil {
		return fmt.Errorf("ending session %s: %w", id, err)
	}
	return nil
}

// Get returns one session, or nil if it is unknown.
func (l *Ledger) Get(id string) (*domain.SessionSummary, error) {
	row := l.db.sql.QueryRow(sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns sessions by most recent activity. Limit of 0 defaults to 50.
func (l *Ledger) List(limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.sql.Query(sessionColumns+` FROM sessions ORDER BY last_message_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats returns aggregate counts over the whole ledger.
func (l *Ledger) Stats() (LedgerStats, error) {
	var st LedgerStats
	err := l.db.sql.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN ended = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(ended), 0),
		        COALESCE(SUM(user_messages), 0),
		        COALESCE(SUM(bot_messages), 0),
		        (SELECT COUNT(*) FROM notes)
		 FROM sessions`,
	).Scan(&st.Sessions, &st.Active, &st.Ended, &st.UserMessages, &st.BotMessages, &st.Notes)
	if err != nil {
		return st, fmt.Errorf("reading ledger stats: %w", err)
	}
	return st, nil
}

// CloseOpen marks every session still open as ended. Conversations do not
// survive a restart, so this runs at startup.
func (l *Ledger) CloseOpen(reason string) (int64, error) {
	res, err := l.db.sql.Exec(`UPDATE sessions SET ended = 1, end_reason = ? WHERE ended = 0`, reason)
	if err != nil {
		return 0, fmt.Errorf("closing open sessions: %w", err)
	}
	return res.RowsAffected()
}

const sessionColumns = `SELECT id, channel_id, account_id, chat_id, display_name,
	started_at, last_message_at, user_messages, bot_messages, ended, end_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (domain.SessionSummary, error) {
	var s domain.SessionSummary
	var started, last string
	if err := r.Scan(
		&s.ID, &s.Key.ChannelID, &s.Key.AccountID, &s.Key.ChatID, &s.DisplayName,
		&started, &last, &s.UserMessages, &s.BotMessages, &s.Ended, &s.EndReason,
	); err != nil {
		return s, err
	}
	s.StartedAt, _ = time.Parse(timeLayout, started)
	s.LastMessageAt, _ = time.Parse(timeLayout, last)
	return s, nil
}
