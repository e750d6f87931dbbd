package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the production Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(db)
}

// NewSQLiteStore wraps an existing connection and migrates the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raters (
			rater_id TEXT PRIMARY KEY,
			created_utc TEXT,
			user_agent TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS responses_a (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rater_id TEXT,
			provider TEXT, model TEXT,
			category_id TEXT, prompt_id TEXT, seed_label INTEGER,
			image_path TEXT, prompt_text TEXT,
			has_text INTEGER, no_people INTEGER,
			adherence INTEGER, aesthetic INTEGER, creativity INTEGER, style INTEGER,
			text_correctness TEXT, people_violation INTEGER,
			elapsed_ms INTEGER, submitted_utc TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS responses_b (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rater_id TEXT,
			category_id TEXT, prompt_id TEXT, seed_label INTEGER,
			provider TEXT, rank INTEGER, image_path TEXT,
			elapsed_ms INTEGER, submitted_utc TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS responses_c (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rater_id TEXT,
			provider TEXT, category_id TEXT, prompt_id TEXT,
			diversity INTEGER,
			image_paths_json TEXT,
			elapsed_ms INTEGER, submitted_utc TEXT
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(context.Background(), q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRater(ctx context.Context, raterID, userAgent string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO raters (rater_id, created_utc, user_agent) VALUES (?, ?, ?)`,
		raterID, time.Now().UTC().Format(time.RFC3339), userAgent)
	if err != nil {
		return fmt.Errorf("insert rater: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertA(ctx context.Context, r ResponseA) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO responses_a (
		rater_id, provider, model, category_id, prompt_id, seed_label,
		image_path, prompt_text, has_text, no_people,
		adherence, aesthetic, creativity, style,
		text_correctness, people_violation, elapsed_ms, submitted_utc
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.RaterID, r.Provider, r.Model, r.CategoryID, r.PromptID, r.SeedLabel,
		r.ImagePath, r.PromptText, boolInt(r.HasText), boolInt(r.NoPeople),
		r.Adherence, r.Aesthetic, r.Creativity, r.Style,
		r.TextCorrectness, boolInt(r.PeopleViolation), r.ElapsedMS,
		r.SubmittedUTC.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert response A: %w", err)
	}
	return nil
}

// InsertB writes one ranking submission: one row per provider, all or
// nothing.
func (s *SQLiteStore) InsertB(ctx context.Context, rows []ResponseB) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert response B: %w", err)
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO responses_b (
			rater_id, category_id, prompt_id, seed_label,
			provider, rank, image_path, elapsed_ms, submitted_utc
		) VALUES (?,?,?,?,?,?,?,?,?)`,
			r.RaterID, r.CategoryID, r.PromptID, r.SeedLabel,
			r.Provider, r.Rank, r.ImagePath, r.ElapsedMS,
			r.SubmittedUTC.UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert response B: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit response B: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertC(ctx context.Context, r ResponseC) error {
	paths, _ := json.Marshal(r.ImagePaths)
	_, err := s.db.ExecContext(ctx, `INSERT INTO responses_c (
		rater_id, provider, category_id, prompt_id, diversity,
		image_paths_json, elapsed_ms, submitted_utc
	) VALUES (?,?,?,?,?,?,?,?)`,
		r.RaterID, r.Provider, r.CategoryID, r.PromptID, r.Diversity,
		string(paths), r.ElapsedMS, r.SubmittedUTC.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert response C: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
