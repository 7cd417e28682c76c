// Package sqlite implements the storage contracts on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/storage"
)

// Store is a SQLite implementation of ResponseCache, InteractionLog and RatingLog.
//
// Writers to the interaction and rating logs serialize on a single mutex.
// This keeps append and rating updates simple but does not scale to high
// write rates.
type Store struct {
	db *sqlx.DB

	writeMu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// New opens the database at dsn and initializes the schema.
// dsn may be a file path or a URI such as file:name?mode=memory&cache=shared.
func New(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: pragmas are per-connection, and shared-cache
	// in-memory databases report table locks across connections.
	db.SetMaxOpenConns(1)

	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			prompt TEXT NOT NULL,
			model TEXT NOT NULL,
			response TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (prompt, model)
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			prompt TEXT NOT NULL,
			model TEXT NOT NULL,
			response TEXT NOT NULL,
			latency_ms INTEGER,
			token_count INTEGER,
			prompt_id TEXT NOT NULL,
			rating INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS ratings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			prompt_id TEXT NOT NULL,
			model TEXT NOT NULL,
			rating INTEGER NOT NULL,
			feedback TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_prompt_id ON ratings(prompt_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return s.migrate()
}

// addedColumns are interaction columns that older databases may lack.
var addedColumns = []struct {
	name string
	decl string
}{
	{"requested_model", "TEXT"},
	{"rating_timestamp", "TEXT"},
	{"from_cache", "INTEGER NOT NULL DEFAULT 0"},
}

func (s *Store) migrate() error {
	for _, col := range addedColumns {
		var n int
		if err := s.db.Get(&n, `SELECT COUNT(*) FROM pragma_table_info('interactions') WHERE name = ?`, col.name); err != nil {
			return fmt.Errorf("failed to inspect column %s: %w", col.name, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE interactions ADD COLUMN %s %s`, col.name, col.decl)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_interactions_prompt_id ON interactions(prompt_id)`); err != nil {
		return fmt.Errorf("failed to create prompt_id index: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sqlx.DB.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

type cacheRow struct {
	Prompt    string `db:"prompt"`
	Model     string `db:"model"`
	Response  string `db:"response"`
	Timestamp string `db:"timestamp"`
}

// Lookup returns the cached entry for (prompt, model), or nil on a miss.
func (s *Store) Lookup(ctx context.Context, prompt, model string) (*domain.CacheEntry, error) {
	var row cacheRow
	err := s.db.GetContext(ctx, &row,
		`SELECT prompt, model, response, timestamp FROM cache WHERE prompt = ? AND model = ?`,
		prompt, model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	ts, err := domain.ParseTimestamp(row.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache timestamp: %w", err)
	}

	return &domain.CacheEntry{
		Prompt:    row.Prompt,
		Model:     row.Model,
		Response:  row.Response,
		Timestamp: ts,
	}, nil
}

// Store upserts a cache entry. The last write for a key wins.
func (s *Store) Store(ctx context.Context, entry *domain.CacheEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache (prompt, model, response, timestamp) VALUES (?, ?, ?, ?)
		ON CONFLICT(prompt, model) DO UPDATE SET response = excluded.response, timestamp = excluded.timestamp`,
		entry.Prompt, entry.Model, entry.Response, domain.FormatTimestamp(ts))
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

type interactionRow struct {
	Timestamp       string         `db:"timestamp"`
	Prompt          string         `db:"prompt"`
	Model           string         `db:"model"`
	RequestedModel  sql.NullString `db:"requested_model"`
	Response        string         `db:"response"`
	LatencyMs       sql.NullInt64  `db:"latency_ms"`
	TokenCount      sql.NullInt64  `db:"token_count"`
	PromptID        string         `db:"prompt_id"`
	Rating          sql.NullInt64  `db:"rating"`
	RatingTimestamp sql.NullString `db:"rating_timestamp"`
	FromCache       bool           `db:"from_cache"`
}

const interactionColumns = `timestamp, prompt, model, requested_model, response, latency_ms,
	token_count, prompt_id, rating, rating_timestamp, from_cache`

func (r *interactionRow) toRecord() (domain.InteractionRecord, error) {
	ts, err := domain.ParseTimestamp(r.Timestamp)
	if err != nil {
		return domain.InteractionRecord{}, fmt.Errorf("failed to parse interaction timestamp: %w", err)
	}

	rec := domain.InteractionRecord{
		Timestamp:      ts,
		Prompt:         r.Prompt,
		Model:          r.Model,
		RequestedModel: r.RequestedModel.String,
		Response:       r.Response,
		PromptID:       r.PromptID,
		FromCache:      r.FromCache,
	}
	if r.LatencyMs.Valid {
		v := r.LatencyMs.Int64
		rec.LatencyMs = &v
	}
	if r.TokenCount.Valid {
		v := int(r.TokenCount.Int64)
		rec.TokenCount = &v
	}
	if r.Rating.Valid {
		v := int(r.Rating.Int64)
		rec.Rating = &v
	}
	if r.RatingTimestamp.Valid && r.RatingTimestamp.String != "" {
		if rts, err := domain.ParseTimestamp(r.RatingTimestamp.String); err == nil {
			rec.RatingTimestamp = &rts
		}
	}
	return rec, nil
}

// Append adds an interaction record.
func (s *Store) Append(ctx context.Context, rec *domain.InteractionRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var ratingTS sql.NullString
	if rec.RatingTimestamp != nil {
		ratingTS = sql.NullString{String: domain.FormatTimestamp(*rec.RatingTimestamp), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (`+interactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		domain.FormatTimestamp(rec.Timestamp),
		rec.Prompt,
		rec.Model,
		nullString(rec.RequestedModel),
		rec.Response,
		nullInt64(rec.LatencyMs),
		nullInt(rec.TokenCount),
		rec.PromptID,
		nullInt(rec.Rating),
		ratingTS,
		rec.FromCache,
	)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

// UpdateRating sets the rating on every record with promptID.
func (s *Store) UpdateRating(ctx context.Context, promptID string, score int, at time.Time) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions SET rating = ?, rating_timestamp = ? WHERE prompt_id = ?`,
		score, domain.FormatTimestamp(at), promptID)
	if err != nil {
		return 0, fmt.Errorf("failed to update rating: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// List returns every interaction in append order.
func (s *Store) List(ctx context.Context) ([]domain.InteractionRecord, error) {
	return s.selectInteractions(ctx,
		`SELECT `+interactionColumns+` FROM interactions ORDER BY id`)
}

// Get returns the interactions carrying promptID.
func (s *Store) Get(ctx context.Context, promptID string) ([]domain.InteractionRecord, error) {
	return s.selectInteractions(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE prompt_id = ? ORDER BY id`, promptID)
}

func (s *Store) selectInteractions(ctx context.Context, query string, args ...any) ([]domain.InteractionRecord, error) {
	var rows []interactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}

	out := make([]domain.InteractionRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type ratingRow struct {
	Timestamp string         `db:"timestamp"`
	PromptID  string         `db:"prompt_id"`
	Model     string         `db:"model"`
	Rating    int            `db:"rating"`
	Feedback  sql.NullString `db:"feedback"`
}

// AppendRating adds a v2 rating record.
func (s *Store) AppendRating(ctx context.Context, rec *domain.RatingRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (timestamp, prompt_id, model, rating, feedback) VALUES (?, ?, ?, ?, ?)`,
		domain.FormatTimestamp(rec.Timestamp), rec.PromptID, rec.Model, rec.Rating, nullString(rec.Feedback))
	if err != nil {
		return fmt.Errorf("failed to append rating: %w", err)
	}
	return nil
}

// ListRatings returns every v2 rating in append order.
func (s *Store) ListRatings(ctx context.Context) ([]domain.RatingRecord, error) {
	var rows []ratingRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT timestamp, prompt_id, model, rating, feedback FROM ratings ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}

	out := make([]domain.RatingRecord, 0, len(rows))
	for _, r := range rows {
		ts, err := domain.ParseTimestamp(r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rating timestamp: %w", err)
		}
		out = append(out, domain.RatingRecord{
			Timestamp: ts,
			PromptID:  r.PromptID,
			Model:     r.Model,
			Rating:    r.Rating,
			Feedback:  r.Feedback.String,
		})
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
