package history

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// FileStore appends history records to a jsonl file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a history store backed by the jsonl file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save implements ports.HistoryStore.
func (f *FileStore) Save(_ context.Context, record domain.HistoryRecord) error {
	if !record.Finalized() {
		return ErrNotFinalized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = file.Write(data)
	return err
}

// Get implements ports.HistoryStore.
func (f *FileStore) Get(_ context.Context, id string) (domain.HistoryRecord, error) {
	records, err := f.records()
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.HistoryRecord{}, fmt.Errorf("history %s: %w", id, domain.ErrNotFound)
}

// List implements ports.HistoryStore with the same ordering as SQLiteStore.
func (f *FileStore) List(_ context.Context, query domain.HistoryQuery) ([]domain.HistoryRecord, error) {
	records, err := f.records()
	if err != nil {
		return nil, err
	}
	var out []domain.HistoryRecord
	for _, rec := range records {
		if query.NoteID != "" && rec.NoteID != query.NoteID {
			continue
		}
		if query.Status != domain.StatusPending && rec.Status != query.Status {
			continue
		}
		if query.Search != "" && !strings.Contains(rec.Prompt, query.Search) && !strings.Contains(rec.GeneratedContent, query.Search) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Clear removes the history file.
func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// records loads all history entries, skipping corrupt lines.
func (f *FileStore) records() ([]domain.HistoryRecord, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var records []domain.HistoryRecord
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var rec domain.HistoryRecord
		if err := json.Unmarshal(line, &rec); err == nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

var _ ports.HistoryStore = (*FileStore)(nil)
