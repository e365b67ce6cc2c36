// Package store persists the structured decision log.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"intraday-trader/internal/models"
)

// DecisionStore records one decision per cycle per symbol. The decision
// log is the only sanctioned channel for downstream analytics; reporting
// tools read it instead of reaching into engine state.
type DecisionStore interface {
	SaveDecision(ctx context.Context, rec models.DecisionRecord) error
	RecentDecisions(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error)
	Close() error
}

// SQLiteStore implements DecisionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed decision store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		scores TEXT NOT NULL,
		proposals TEXT NOT NULL,
		selected TEXT,
		verdict TEXT NOT NULL,
		reason TEXT,
		quantity INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_symbol_time
		ON decisions(symbol, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDecision appends one decision record.
func (s *SQLiteStore) SaveDecision(ctx context.Context, rec models.DecisionRecord) error {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return fmt.Errorf("marshaling scores: %w", err)
	}
	proposals, err := json.Marshal(rec.Proposals)
	if err != nil {
		return fmt.Errorf("marshaling proposals: %w", err)
	}

	var selected []byte
	if rec.Selected != nil {
		selected, err = json.Marshal(rec.Selected)
		if err != nil {
			return fmt.Errorf("marshaling selected signal: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (timestamp, symbol, snapshot, scores, proposals, selected, verdict, reason, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Symbol, string(snapshot), string(scores), string(proposals),
		nullable(selected), string(rec.Verdict), rec.Reason, rec.Quantity,
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	return nil
}

func nullable(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// RecentDecisions returns the latest decision records for a symbol, newest
// first.
func (s *SQLiteStore) RecentDecisions(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, symbol, snapshot, scores, proposals, selected, verdict, reason, quantity
		FROM decisions WHERE symbol = ? ORDER BY timestamp DESC LIMIT ?`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []models.DecisionRecord
	for rows.Next() {
		var rec models.DecisionRecord
		var snapshot, scores, proposals string
		var selected sql.NullString
		var verdict string

		if err := rows.Scan(&rec.Timestamp, &rec.Symbol, &snapshot, &scores, &proposals,
			&selected, &verdict, &rec.Reason, &rec.Quantity); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}

		if err := json.Unmarshal([]byte(snapshot), &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &rec.Scores); err != nil {
			return nil, fmt.Errorf("unmarshaling scores: %w", err)
		}
		if err := json.Unmarshal([]byte(proposals), &rec.Proposals); err != nil {
			return nil, fmt.Errorf("unmarshaling proposals: %w", err)
		}
		if selected.Valid {
			var sig models.StrategySignal
			if err := json.Unmarshal([]byte(selected.String), &sig); err != nil {
				return nil, fmt.Errorf("unmarshaling selected signal: %w", err)
			}
			rec.Selected = &sig
		}
		rec.Verdict = models.GateVerdict(verdict)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
