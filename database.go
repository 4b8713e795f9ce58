package main

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// MatchRecord represents a completed match
type MatchRecord struct {
	ID         int64     `json:"id"`
	RoomID     string    `json:"roomId"`
	Rank       string    `json:"rank"`
	Quick      bool      `json:"quickMatch"`
	Players    int       `json:"players"`
	Bots       int       `json:"bots"`
	Duration   float64   `json:"duration"` // seconds
	WinnerID   string    `json:"winnerId"`
	WinnerName string    `json:"winnerName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		player_id TEXT NOT NULL DEFAULT '',
		room_id TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		rank TEXT NOT NULL DEFAULT '',
		quick INTEGER NOT NULL DEFAULT 0,
		players INTEGER NOT NULL DEFAULT 0,
		bots INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		winner_id TEXT NOT NULL DEFAULT '',
		winner_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_matches_created ON matches(created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// InsertEvents writes a batch of analytics events in one transaction
func (db *DB) InsertEvents(events []AnalyticsEvent) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		"INSERT INTO events (type, player_id, room_id, data, created_at) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.Type, e.PlayerID, e.RoomID, e.Data, e.Timestamp); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecordMatch records a completed match
func (db *DB) RecordMatch(rec MatchRecord) error {
	_, err := db.conn.Exec(
		`INSERT INTO matches (room_id, rank, quick, players, bots, duration, winner_id, winner_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RoomID, rec.Rank, rec.Quick, rec.Players, rec.Bots, rec.Duration, rec.WinnerID, rec.WinnerName,
	)
	return err
}

// RecentMatches returns the most recent completed matches
func (db *DB) RecentMatches(limit int) ([]MatchRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, room_id, rank, quick, players, bots, duration, winner_id, winner_name, created_at
		FROM matches ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchRecord
	for rows.Next() {
		var r MatchRecord
		if err := rows.Scan(&r.ID, &r.RoomID, &r.Rank, &r.Quick, &r.Players, &r.Bots,
			&r.Duration, &r.WinnerID, &r.WinnerName, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// EventCount returns the number of stored events of the given type
// (all types when empty)
func (db *DB) EventCount(evtType string) (int, error) {
	var n int
	var err error
	if evtType == "" {
		err = db.conn.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	} else {
		err = db.conn.QueryRow("SELECT COUNT(*) FROM events WHERE type = ?", evtType).Scan(&n)
	}
	return n, err
}
