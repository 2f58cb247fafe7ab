package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"milesync/internal"
)

const timeLayout = time.RFC3339

type DB struct {
	conn *sql.DB
	now  func() time.Time
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS consents (
  clientId TEXT PRIMARY KEY,
  accepted INTEGER NOT NULL,
  updatedAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  clientId TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  createdAt TEXT NOT NULL,
  expiresAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS syncs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  clientId TEXT NOT NULL,
  program TEXT NOT NULL,
  balance INTEGER NOT NULL,
  rawText TEXT NOT NULL,
  confidence TEXT NOT NULL,
  score INTEGER NOT NULL,
  capturedAt TEXT NOT NULL,
  url TEXT NOT NULL,
  syncedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_syncs_client_program ON syncs(clientId, program, syncedAt);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) SetConsent(clientID string, accepted bool) error {
	_, err := d.conn.Exec(`
INSERT INTO consents (clientId, accepted, updatedAt) VALUES (?, ?, ?)
ON CONFLICT(clientId) DO UPDATE SET accepted = excluded.accepted, updatedAt = excluded.updatedAt
`, clientID, accepted, d.stamp())
	return err
}

func (d *DB) HasConsent(clientID string) (bool, error) {
	var accepted bool
	err := d.conn.QueryRow(`SELECT accepted FROM consents WHERE clientId = ?`, clientID).Scan(&accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return accepted, nil
}

func (d *DB) PutSession(clientID, token string, ttl time.Duration) error {
	now := d.now().UTC()
	_, err := d.conn.Exec(`
INSERT INTO sessions (clientId, token, createdAt, expiresAt) VALUES (?, ?, ?, ?)
ON CONFLICT(clientId) DO UPDATE SET token = excluded.token, createdAt = excluded.createdAt, expiresAt = excluded.expiresAt
`, clientID, token, now.Format(timeLayout), now.Add(ttl).Format(timeLayout))
	return err
}

// SessionValid reports whether clientID holds an unexpired session for token.
func (d *DB) SessionValid(clientID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var expiresAt string
	err := d.conn.QueryRow(`SELECT expiresAt FROM sessions WHERE clientId = ? AND token = ?`, clientID, token).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	parsed, err := time.Parse(timeLayout, expiresAt)
	if err != nil {
		return false, nil
	}
	return d.now().UTC().Before(parsed), nil
}

func (d *DB) DeleteSession(clientID string) error {
	_, err := d.conn.Exec(`DELETE FROM sessions WHERE clientId = ?`, clientID)
	return err
}

func (d *DB) InsertSync(clientID string, data internal.DetectedData) (internal.SyncRecord, error) {
	syncedAt := d.stamp()
	result, err := d.conn.Exec(`
INSERT INTO syncs (clientId, program, balance, rawText, confidence, score, capturedAt, url, syncedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, clientID, data.Program, data.Balance, data.RawText, string(data.Confidence), data.Score, data.CapturedAt, data.URL, syncedAt)
	if err != nil {
		return internal.SyncRecord{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return internal.SyncRecord{}, err
	}
	return internal.SyncRecord{
		ID:         int(id),
		ClientID:   clientID,
		Program:    data.Program,
		Balance:    data.Balance,
		RawText:    data.RawText,
		Confidence: string(data.Confidence),
		Score:      data.Score,
		CapturedAt: data.CapturedAt,
		URL:        data.URL,
		SyncedAt:   syncedAt,
	}, nil
}

// LastSyncAt returns when clientID last synced program, or nil if never.
func (d *DB) LastSyncAt(clientID, program string) (*time.Time, error) {
	var syncedAt string
	err := d.conn.QueryRow(`
SELECT syncedAt FROM syncs WHERE clientId = ? AND program = ? ORDER BY syncedAt DESC, id DESC LIMIT 1
`, clientID, program).Scan(&syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	parsed, err := time.Parse(timeLayout, syncedAt)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ListSyncs returns synced balances, newest first. An empty clientID lists
// every client.
func (d *DB) ListSyncs(clientID string, limit int) ([]internal.SyncRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := d.conn.Query(`
SELECT id, clientId, program, balance, rawText, confidence, score, capturedAt, url, syncedAt
FROM syncs WHERE (? = '' OR clientId = ?) ORDER BY syncedAt DESC, id DESC LIMIT ?
`, clientID, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SyncRecord
	for rows.Next() {
		var r internal.SyncRecord
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Program, &r.Balance, &r.RawText, &r.Confidence, &r.Score, &r.CapturedAt, &r.URL, &r.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) stamp() string {
	return d.now().UTC().Format(timeLayout)
}
