package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Create events table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		db.Close()
		return nil, err
	}

	// One row per classification attempt, successful or not
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS classifications(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		req_id TEXT,
		source TEXT,
		complaint TEXT,
		category TEXT,
		prompt_tokens INTEGER,
		completion_tokens INTEGER,
		total_tokens INTEGER,
		artifact_key TEXT,
		model TEXT,
		dur_ms REAL,
		status TEXT,
		error TEXT
	)`); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) error {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, err := db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		float64(time.Now().UnixNano())/1e9, level, code, msg, m)
	return err
}

func (db *DB) Classification(start time.Time, reqID, source, complaint, category string,
	promptTokens, completionTokens, totalTokens int64, artifactKey, model string, dur time.Duration, status, errStr string) error {
	_, err := db.Exec(`INSERT INTO classifications(
		ts, req_id, source, complaint, category, prompt_tokens, completion_tokens, total_tokens, artifact_key, model, dur_ms, status, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		float64(start.UnixNano())/1e9, reqID, source, complaint, category, promptTokens, completionTokens, totalTokens,
		artifactKey, model, float64(dur.Milliseconds()), status, errStr)
	return err
}
