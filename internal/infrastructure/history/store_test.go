package history

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

func sampleRecord(id, noteID string, status domain.HistoryStatus, at time.Time) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:               id,
		NoteID:           noteID,
		Prompt:           "summarise " + noteID,
		Provider:         domain.ProviderDeepSeek,
		Model:            "deepseek-reasoner",
		Temperature:      0.7,
		MaxTokens:        2000,
		Stream:           true,
		GeneratedContent: "content for " + noteID,
		Status:           status,
		Duration:         1500 * time.Millisecond,
		CreatedAt:        at,
	}
}

func stores(t *testing.T) map[string]ports.HistoryStore {
	t.Helper()
	dir := t.TempDir()
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]ports.HistoryStore{
		"sqlite": sqlite,
		"file":   NewFileStore(filepath.Join(dir, "history.jsonl")),
	}
}

func TestStores_SaveAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := sampleRecord("r1", "note-1", domain.StatusSuccess, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
			rec.ThinkingChain = &domain.ThinkingChainContent{
				Steps:          []domain.ThinkingChainStep{{ID: "step-1", Content: "分析", Type: domain.StepAnalysis}},
				Summary:        "Thinking chain: 1 step (analysis 1)",
				TotalSteps:     1,
				RawContent:     "分析",
				DetectedFormat: domain.FormatXMLTag,
			}
			rec.TokenUsage = &domain.TokenUsage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12}
			require.NoError(t, store.Save(ctx, rec))

			got, err := store.Get(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, rec.Prompt, got.Prompt)
			assert.Equal(t, rec.Provider, got.Provider)
			assert.Equal(t, rec.Duration, got.Duration)
			assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
			require.NotNil(t, got.ThinkingChain)
			assert.Equal(t, 1, got.ThinkingChain.TotalSteps)
			assert.Equal(t, domain.StepAnalysis, got.ThinkingChain.Steps[0].Type)
			require.NotNil(t, got.TokenUsage)
			assert.Equal(t, 12, got.TokenUsage.TotalTokens)

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStores_RejectUnfinalized(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Save(context.Background(), sampleRecord("r1", "n", domain.StatusPending, time.Now()))
			assert.ErrorIs(t, err, ErrNotFinalized)
		})
	}
}

func TestStores_ListFiltersAndOrder(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, sampleRecord("a", "note-1", domain.StatusSuccess, base)))
			require.NoError(t, store.Save(ctx, sampleRecord("b", "note-2", domain.StatusError, base.Add(time.Second))))
			require.NoError(t, store.Save(ctx, sampleRecord("c", "note-1", domain.StatusCancelled, base.Add(2*time.Second))))

			all, err := store.List(ctx, domain.HistoryQuery{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"c", "b", "a"}, ids(all))

			byNote, err := store.List(ctx, domain.HistoryQuery{NoteID: "note-1"})
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "a"}, ids(byNote))

			errs, err := store.List(ctx, domain.HistoryQuery{Status: domain.StatusError})
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids(errs))

			search, err := store.List(ctx, domain.HistoryQuery{Search: "note-2"})
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids(search))

			limited, err := store.List(ctx, domain.HistoryQuery{Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, []string{"c"}, ids(limited))

			require.NoError(t, store.Clear(ctx))
			empty, err := store.List(ctx, domain.HistoryQuery{})
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestSQLiteStore_DuplicateIDRejected(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	rec := sampleRecord("dup", "n", domain.StatusSuccess, time.Now())
	require.NoError(t, store.Save(context.Background(), rec))
	assert.Error(t, store.Save(context.Background(), rec))
}

func TestOpen_FallsBackToFileStore(t *testing.T) {
	dir := t.TempDir()
	// a directory where the database file should be makes sqlite fail
	blocked := filepath.Join(dir, "history.db")
	require.NoError(t, os.MkdirAll(blocked, 0o755))

	store, err := Open(blocked, true, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history.jsonl"), store.Path())

	_, err = Open(blocked, false, nil)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, store.Save(ctx, sampleRecord("a", "note-1", domain.StatusSuccess, time.Now())))
	require.NoError(t, store.Save(ctx, sampleRecord("b", "note-2", domain.StatusError, time.Now().Add(time.Second))))

	var jsonl bytes.Buffer
	n, err := Export(ctx, store, domain.HistoryQuery{}, FormatJSONL, &jsonl)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, strings.Split(strings.TrimSpace(jsonl.String()), "\n"), 2)

	var yml bytes.Buffer
	_, err = Export(ctx, store, domain.HistoryQuery{}, FormatYAML, &yml)
	require.NoError(t, err)
	assert.Contains(t, yml.String(), "provider: deepseek")

	_, err = Export(ctx, store, domain.HistoryQuery{}, "xml", &yml)
	assert.Error(t, err)
}

func ids(records []domain.HistoryRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
