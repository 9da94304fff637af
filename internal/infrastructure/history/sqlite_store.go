package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/infrastructure/storage"
	"github.com/doeshing/notegen/internal/ports"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFinalized is returned when a record without a terminal status is saved.
var ErrNotFinalized = errors.New("history record is not finalized")

// SQLiteStore persists history in the generation_history table.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Open returns a SQLite-backed store, or a jsonl FileStore next to path when
// SQLite is unavailable and fallback is allowed.
func Open(path string, fallback bool, logger ports.Logger) (ports.HistoryStore, error) {
	store, err := NewSQLiteStore(path)
	if err == nil {
		return store, nil
	}
	if !fallback {
		return nil, err
	}
	fs := NewFileStore(strings.TrimSuffix(path, ".db") + ".jsonl")
	if logger != nil {
		logger.Warn("history database unavailable, using jsonl fallback", map[string]interface{}{
			"path":  fs.Path(),
			"error": err.Error(),
		})
	}
	return fs, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS generation_history (
		id TEXT PRIMARY KEY,
		note_id TEXT,
		prompt TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		temperature REAL,
		max_tokens INTEGER,
		stream INTEGER,
		generated_content TEXT,
		thinking_chain TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error_message TEXT,
		duration_ms INTEGER,
		token_usage TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_generation_history_note ON generation_history(note_id);
	CREATE INDEX IF NOT EXISTS idx_generation_history_created ON generation_history(created_at);`)
	if err != nil {
		return fmt.Errorf("history: create table: %w", err)
	}
	return nil
}

// Save inserts a finalized record. Records are never updated.
func (s *SQLiteStore) Save(ctx context.Context, record domain.HistoryRecord) error {
	if !record.Finalized() {
		return ErrNotFinalized
	}
	chain, err := marshalNullable(record.ThinkingChain)
	if err != nil {
		return err
	}
	usage, err := marshalNullable(record.TokenUsage)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO generation_history
		(id, note_id, prompt, provider, model, temperature, max_tokens, stream, generated_content,
		 thinking_chain, status, error_kind, error_message, duration_ms, token_usage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.NoteID,
		record.Prompt,
		string(record.Provider),
		record.Model,
		record.Temperature,
		record.MaxTokens,
		boolToInt(record.Stream),
		record.GeneratedContent,
		chain,
		string(record.Status),
		string(record.ErrorKind),
		record.ErrorMessage,
		record.Duration.Milliseconds(),
		usage,
		record.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("history: insert %s: %w", record.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, note_id, prompt, provider, model, temperature, max_tokens, stream,
	generated_content, thinking_chain, status, error_kind, error_message, duration_ms, token_usage, created_at
	FROM generation_history`

// Get returns one record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.HistoryRecord{}, err
		}
		return domain.HistoryRecord{}, fmt.Errorf("history %s: %w", id, domain.ErrNotFound)
	}
	return scanRecord(rows)
}

// List returns records newest first.
func (s *SQLiteStore) List(ctx context.Context, query domain.HistoryQuery) ([]domain.HistoryRecord, error) {
	builder := strings.Builder{}
	builder.WriteString(selectColumns)
	var (
		where []string
		args  []interface{}
	)
	if query.NoteID != "" {
		where = append(where, "note_id = ?")
		args = append(args, query.NoteID)
	}
	if query.Status != domain.StatusPending {
		where = append(where, "status = ?")
		args = append(args, string(query.Status))
	}
	if query.Search != "" {
		where = append(where, "(prompt LIKE ? OR generated_content LIKE ?)")
		args = append(args, "%"+query.Search+"%", "%"+query.Search+"%")
	}
	if len(where) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(where, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, id DESC")
	if query.Limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.HistoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all history entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM generation_history")
	return err
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (domain.HistoryRecord, error) {
	var (
		rec                         domain.HistoryRecord
		noteID, kind, msg           sql.NullString
		content, chain, usage       sql.NullString
		provider, status, createdAt string
		stream                      int
		durationMS                  int64
	)
	if err := rows.Scan(&rec.ID, &noteID, &rec.Prompt, &provider, &rec.Model, &rec.Temperature, &rec.MaxTokens,
		&stream, &content, &chain, &status, &kind, &msg, &durationMS, &usage, &createdAt); err != nil {
		return rec, err
	}
	rec.NoteID = noteID.String
	rec.Provider = domain.ProviderID(provider)
	rec.Stream = stream == 1
	rec.GeneratedContent = content.String
	rec.Status = domain.HistoryStatus(status)
	rec.ErrorKind = domain.ErrorKind(kind.String)
	rec.ErrorMessage = msg.String
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if chain.Valid && chain.String != "" {
		var c domain.ThinkingChainContent
		if err := json.Unmarshal([]byte(chain.String), &c); err == nil {
			rec.ThinkingChain = &c
		}
	}
	if usage.Valid && usage.String != "" {
		var u domain.TokenUsage
		if err := json.Unmarshal([]byte(usage.String), &u); err == nil {
			rec.TokenUsage = &u
		}
	}
	return rec, nil
}

func marshalNullable(v interface{}) (sql.NullString, error) {
	switch x := v.(type) {
	case *domain.ThinkingChainContent:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *domain.TokenUsage:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.HistoryStore = (*SQLiteStore)(nil)
