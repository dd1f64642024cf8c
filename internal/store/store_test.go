package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/migrate"
)

func newTestDB(t *testing.T) DBTX {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := migrate.NewManager(db)
	require.NoError(t, m.RegisterAll(Migrations()...))
	status, err := m.Apply(ctx)
	require.NoError(t, err)
	require.True(t, status.OK)
	return db
}

func unitVector(hot int) []float32 {
	v := make([]float32, EmbeddingDimensions)
	v[hot] = 1
	return v
}

func TestMigrations_CreateSchema(t *testing.T) {
	db := newTestDB(t)
	for _, table := range []string{"document", "document_fragment", "document_fragment_fts", "blacklist_rule", "task", "migrations"} {
		var n int
		require.NoError(t, db.QueryRowContext(context.Background(),
			`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
}

func TestDocumentStore_UpsertInsertsOncePerURL(t *testing.T) {
	// Given: an empty store with a fixed clock
	ctx := context.Background()
	docs := NewDocumentStore(newTestDB(t))
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	docs.SetClock(func() time.Time { return t0 })

	// When: a page is upserted twice
	first, err := docs.Upsert(ctx, Document{URL: "https://example.com/a", Title: "A", MdContent: "# A\nbody"})
	require.NoError(t, err)
	second, err := docs.Upsert(ctx, Document{URL: "https://example.com/a", Title: "A again"})
	require.NoError(t, err)

	// Then: the first call inserts and returns the row, the second updates
	require.NotNil(t, first)
	assert.NotZero(t, first.ID)
	assert.Equal(t, ContentHash("# A\nbody"), first.MdContentHash)
	assert.Equal(t, "2024-05-01", first.LastVisitDate)
	assert.Equal(t, t0.UnixMilli(), first.CreatedAt)
	assert.Nil(t, second)

	n, err := docs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDocumentStore_UpdateNeverDowngradesContent(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore(newTestDB(t))

	_, err := docs.Upsert(ctx, Document{URL: "https://example.com/a", Excerpt: "ex", MdContent: "content"})
	require.NoError(t, err)

	// When: a later visit brings no content
	_, err = docs.Upsert(ctx, Document{URL: "https://example.com/a"})
	require.NoError(t, err)

	got, err := docs.FindByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "ex", got.Excerpt)
	assert.Equal(t, "content", got.MdContent)
	assert.Equal(t, ContentHash("content"), got.MdContentHash)

	// When: a later visit brings new content
	_, err = docs.Upsert(ctx, Document{URL: "https://example.com/a", MdContent: "newer"})
	require.NoError(t, err)
	got, err = docs.FindByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "newer", got.MdContent)
}

func TestDocumentStore_TimestampsOnlyMoveForward(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore(newTestDB(t))
	later := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-48 * time.Hour)

	_, err := docs.Upsert(ctx, Document{URL: "https://example.com/a", LastVisit: later.UnixMilli(),
		LastVisitDate: VisitDate(later), UpdatedAt: later.UnixMilli()})
	require.NoError(t, err)

	found, err := docs.Touch(ctx, "https://example.com/a", earlier)
	require.NoError(t, err)
	assert.True(t, found)

	got, err := docs.FindByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, later.UnixMilli(), got.LastVisit)
	assert.Equal(t, later.UnixMilli(), got.UpdatedAt)
	assert.Equal(t, "2024-06-02", got.LastVisitDate)

	found, err = docs.Touch(ctx, "https://example.com/missing", later)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDocumentStore_FindMissing(t *testing.T) {
	docs := NewDocumentStore(newTestDB(t))
	got, err := docs.FindByURL(context.Background(), "https://nowhere.test/")
	require.NoError(t, err)
	assert.Nil(t, got)

	byID, err := docs.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestFragmentStore_UpsertIsIdempotent(t *testing.T) {
	// Given: a document
	ctx := context.Background()
	db := newTestDB(t)
	doc, err := NewDocumentStore(db).Upsert(ctx, Document{URL: "https://example.com/a"})
	require.NoError(t, err)
	frags := NewFragmentStore(db)
	in := FragmentInput{
		Title:   "Title",
		URL:     "https://example.com/a",
		Content: []string{"first part", "  ", "second part"},
	}

	// When: the same fragments are written twice
	n1, err := frags.Upsert(ctx, doc.ID, in)
	require.NoError(t, err)
	n2, err := frags.Upsert(ctx, doc.ID, in)
	require.NoError(t, err)

	// Then: only the first write inserts, blank content is dropped
	assert.Equal(t, 4, n1)
	assert.Zero(t, n2)

	list, err := frags.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, AttributeTitle, list[0].Attribute)
	assert.Equal(t, AttributeURL, list[1].Attribute)
	assert.Equal(t, "first part", list[2].Value)
	assert.Equal(t, 0, list[2].Order)
	assert.Equal(t, "second part", list[3].Value)
	assert.Equal(t, 1, list[3].Order)
}

func TestFragmentStore_FullTextFollowsWrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	doc, err := NewDocumentStore(db).Upsert(ctx, Document{URL: "https://example.com/a"})
	require.NoError(t, err)
	_, err = NewFragmentStore(db).Upsert(ctx, doc.ID, FragmentInput{Content: []string{"the quick brown fox"}})
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_fragment_fts WHERE document_fragment_fts MATCH 'quick'`).Scan(&n))
	assert.Equal(t, 1, n)

	// When: the document is deleted, fragments cascade and leave the index
	deleted, err := NewDocumentStore(db).Delete(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_fragment_fts WHERE document_fragment_fts MATCH 'quick'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, NewFragmentStore(db).RebuildFullText(ctx))
}

func TestFragmentStore_Vectors(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	doc, err := NewDocumentStore(db).Upsert(ctx, Document{URL: "https://example.com/a"})
	require.NoError(t, err)
	frags := NewFragmentStore(db)
	_, err = frags.Upsert(ctx, doc.ID, FragmentInput{Content: []string{"one", "two"}})
	require.NoError(t, err)

	missing, err := frags.MissingVectorsForDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, missing, 2)

	require.NoError(t, frags.SetVector(ctx, missing[0], unitVector(3)))

	err = frags.SetVector(ctx, missing[1], []float32{1, 2})
	assert.Equal(t, apperrors.ErrCodeDimensionMismatch, apperrors.GetCode(err))
	err = frags.SetVector(ctx, 9999, unitVector(1))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := frags.Get(ctx, missing[0])
	require.NoError(t, err)
	assert.Equal(t, unitVector(3), got.Vector)

	all, err := frags.MissingVectors(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{missing[1]}, all)

	withVec, err := frags.CountWithVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), withVec)

	var seen []int64
	require.NoError(t, frags.Vectors(ctx, func(id int64, vec []float32) error {
		seen = append(seen, id)
		return nil
	}))
	assert.Equal(t, []int64{missing[0]}, seen)
}

func TestSQLFunctions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	var sim float64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT vec_cosine(?, ?)`,
		EncodeVector([]float32{1, 0}), EncodeVector([]float32{1, 0})).Scan(&sim))
	assert.InDelta(t, 1.0, sim, 1e-6)

	require.NoError(t, db.QueryRowContext(ctx, `SELECT trgm_similarity('word', 'word')`).Scan(&sim))
	assert.InDelta(t, 1.0, sim, 1e-9)
	require.NoError(t, db.QueryRowContext(ctx, `SELECT trgm_similarity('word', 'xyzq')`).Scan(&sim))
	assert.Zero(t, sim)
}

func TestTrigramSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"hello", "hello", 1, 1},
		{"Hello", "hello", 1, 1},
		{"hello", "helo", 0.3, 0.8},
		{"", "hello", 0, 0},
		{"abc", "xyz", 0, 0},
	}
	for _, tt := range tests {
		got := TrigramSimilarity(tt.a, tt.b)
		assert.GreaterOrEqual(t, got, tt.min, "%q vs %q", tt.a, tt.b)
		assert.LessOrEqual(t, got, tt.max, "%q vs %q", tt.a, tt.b)
	}
	assert.Len(t, Trigrams("cat"), 4)
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0.5, -1.25, 3}
	got, err := DecodeVector(EncodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.Zero(t, sim)
	_, err = CosineSimilarity([]float32{1}, []float32{1, 0})
	assert.Error(t, err)
}

func TestVectorIndex(t *testing.T) {
	// Given: three orthogonal fragments
	idx := NewVectorIndex(VectorIndexConfig{})
	require.NoError(t, idx.Add(1, unitVector(0)))
	require.NoError(t, idx.Add(2, unitVector(1)))
	require.NoError(t, idx.Add(3, unitVector(2)))
	require.NoError(t, idx.Add(4, make([]float32, EmbeddingDimensions)))
	assert.Error(t, idx.Add(5, []float32{1}))
	assert.Equal(t, 3, idx.Len())

	// When: searching near fragment 2
	hits, err := idx.Search(unitVector(1), 1)
	require.NoError(t, err)

	// Then: fragment 2 is the best candidate
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].FragmentID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)

	// When: fragment 2 is removed
	idx.Remove(2)
	hits, err = idx.Search(unitVector(1), 3)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, int64(2), h.FragmentID)
	}
	assert.False(t, idx.Contains(2))
	assert.Equal(t, 1, idx.Stats().Orphans)

	// When: re-added it is live again without a new graph node
	require.NoError(t, idx.Add(2, unitVector(1)))
	assert.True(t, idx.Contains(2))
	assert.Equal(t, 3, idx.Stats().GraphNodes)

	require.NoError(t, idx.Close())
	_, err = idx.Search(unitVector(1), 1)
	assert.Error(t, err)
}

func TestVectorIndex_Load(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	doc, err := NewDocumentStore(db).Upsert(ctx, Document{URL: "https://example.com/a"})
	require.NoError(t, err)
	frags := NewFragmentStore(db)
	_, err = frags.Upsert(ctx, doc.ID, FragmentInput{Content: []string{"one", "two"}})
	require.NoError(t, err)
	ids, err := frags.MissingVectors(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, frags.SetVector(ctx, ids[0], unitVector(7)))

	idx := NewVectorIndex(VectorIndexConfig{})
	n, err := idx.Load(ctx, frags)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, idx.Contains(ids[0]))
}

func TestExportImport_RoundTrip(t *testing.T) {
	// Given: a database with one document, fragments and a vector
	ctx := context.Background()
	src := newTestDB(t)
	doc, err := NewDocumentStore(src).Upsert(ctx, Document{URL: "https://example.com/a", Title: "A", MdContent: "body"})
	require.NoError(t, err)
	frags := NewFragmentStore(src)
	_, err = frags.Upsert(ctx, doc.ID, FragmentInput{Title: "A", Content: []string{"body"}})
	require.NoError(t, err)
	ids, err := frags.MissingVectors(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, frags.SetVector(ctx, ids[0], unitVector(5)))

	// When: exporting and importing into an empty database twice
	var buf bytes.Buffer
	exported, err := Export(ctx, src, &buf)
	require.NoError(t, err)
	assert.Equal(t, BulkSummary{Documents: 1, Fragments: 2}, exported)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	dst := newTestDB(t)
	imported, err := Import(ctx, dst, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	again, err := Import(ctx, dst, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	// Then: rows arrive once, vectors included
	assert.Equal(t, BulkSummary{Documents: 1, Fragments: 2}, imported)
	assert.Equal(t, BulkSummary{Skipped: 3}, again)

	st, err := CollectStats(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, int64(2), st.Fragments)
	assert.Equal(t, int64(1), st.FragmentsWithVectors)
	assert.Positive(t, st.DBBytes)
}

func TestImport_RejectsGarbage(t *testing.T) {
	_, err := Import(context.Background(), newTestDB(t), strings.NewReader("{not json"))
	assert.Equal(t, apperrors.ErrCodeImportFailed, apperrors.GetCode(err))
}

func TestWriterLock_SecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first := NewWriterLock(path)
	require.NoError(t, first.Acquire())
	t.Cleanup(func() { _ = first.Release() })

	second := NewWriterLock(path)
	err := second.Acquire()
	assert.ErrorIs(t, err, apperrors.ErrDatabaseLocked)

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
	assert.Equal(t, path+".lock", second.Path())
}

func TestOpen_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	require.NoError(t, IntegrityCheck(ctx, db))
	require.NoError(t, Checkpoint(ctx, db))
}
