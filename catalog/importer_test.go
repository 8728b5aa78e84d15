package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/seat-go/service/data"
)

// recordingStore remembers the size of every committed batch.
type recordingStore struct {
	data.IService
	batches []int
	failAt  int
}

func (s *recordingStore) CommitBatch(ctx context.Context, collection string, docs []data.Document) error {
	if s.failAt > 0 && len(s.batches)+1 == s.failAt {
		return errors.New("quota exceeded")
	}
	s.batches = append(s.batches, len(docs))
	return s.IService.CommitBatch(ctx, collection, docs)
}

func bookOptions() ImportOptions {
	return ImportOptions{
		Collection:    "books",
		KeyField:      "isbn",
		CategoryField: "categories",
	}
}

func booksCSV(n int) string {
	var b strings.Builder
	b.WriteString("isbn,title,authors,categories\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "978%07d,Book %d,Author %d,Fiction\n", i, i, i)
	}
	return b.String()
}

func TestImportRows(t *testing.T) {
	store := data.NewMemory()
	csvData := "\ufeffisbn, title ,authors,categories\n" +
		"9780261103573,The Hobbit,\"Tolkien, J.R.R.\",\"Fantasy; Classics, Fantasy\"\n" +
		",No Key,Nobody,Misc\n" +
		"9780553293357,Foundation,Isaac Asimov;Unknown Editor,\n"

	stats, err := Import(context.Background(), strings.NewReader(csvData), store, bookOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Batches)

	doc, ok, err := store.Get(context.Background(), "books", "9780261103573")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "The Hobbit", doc.Fields["title"])
	assert.Equal(t, []string{"Tolkien, J.R.R."}, doc.Fields["authors"])
	assert.Equal(t, []string{"Fantasy", "Classics"}, doc.Fields["categories"])

	doc, ok, err = store.Get(context.Background(), "books", "9780553293357")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"Isaac Asimov", "Unknown Editor"}, doc.Fields["authors"])
	_, hasCategories := doc.Fields["categories"]
	assert.False(t, hasCategories)
}

func TestImportBatching(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		batches []int
	}{
		{"empty", 0, nil},
		{"partial", 3, []int{3}},
		{"exact", 500, []int{500}},
		{"one over", 501, []int{500, 1}},
		{"many", 1234, []int{500, 500, 234}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &recordingStore{IService: data.NewMemory()}

			stats, err := Import(context.Background(), strings.NewReader(booksCSV(tc.rows)), store, bookOptions())
			require.NoError(t, err)

			assert.Equal(t, tc.batches, store.batches)
			assert.Equal(t, tc.rows, stats.Written)
			assert.Equal(t, len(tc.batches), stats.Batches)
		})
	}
}

func TestImportBatchSizeIsCapped(t *testing.T) {
	store := &recordingStore{IService: data.NewMemory()}
	opts := bookOptions()
	opts.BatchSize = 10000

	_, err := Import(context.Background(), strings.NewReader(booksCSV(600)), store, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{500, 100}, store.batches)
}

func TestImportStopsOnCommitError(t *testing.T) {
	store := &recordingStore{IService: data.NewMemory(), failAt: 2}

	stats, err := Import(context.Background(), strings.NewReader(booksCSV(1200)), store, bookOptions())
	require.Error(t, err)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, 500, stats.Written)
}

func TestImportEmptyInput(t *testing.T) {
	stats, err := Import(context.Background(), strings.NewReader(""), data.NewMemory(), bookOptions())
	require.NoError(t, err)
	assert.Zero(t, stats.Rows)
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(path, []byte(booksCSV(2)), 0o644))

	stats, err := ImportFile(context.Background(), path, data.NewMemory(), bookOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)

	_, err = ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), data.NewMemory(), bookOptions())
	assert.Error(t, err)
}
