package sqlitevec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "refs.db"), 3, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InsertAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "refs", []retrieval.Record{
		{Question: "count users", SQL: "SELECT count(*) FROM users", Vector: []float32{1, 0, 0}},
		{Question: "total revenue", SQL: "SELECT sum(amount) FROM orders", Vector: []float32{0, 1, 0}, Tags: []string{"finance"}},
		{Question: "list users", SQL: "SELECT * FROM users", Vector: []float32{0.9, 0.1, 0}},
	}))
	require.NoError(t, s.Insert(ctx, "other", []retrieval.Record{
		{Question: "elsewhere", SQL: "SELECT 1", Vector: []float32{1, 0, 0}},
	}))

	pairs, err := s.Search(ctx, retrieval.SearchRequest{Collection: "refs", Vector: []float32{1, 0, 0}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []retrieval.ReferencePair{
		{Question: "count users", SQL: "SELECT count(*) FROM users"},
		{Question: "list users", SQL: "SELECT * FROM users"},
	}, pairs)

	n, err := s.Count(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_TagFiltering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "refs", []retrieval.Record{
		{Question: "hr only", SQL: "SELECT * FROM staff", Vector: []float32{1, 0, 0}, Tags: []string{"hr"}},
		{Question: "finance", SQL: "SELECT * FROM ledger", Vector: []float32{0.8, 0.2, 0}, Tags: []string{"finance"}},
		{Question: "untagged", SQL: "SELECT 1", Vector: []float32{0.5, 0.5, 0}},
	}))

	pairs, err := s.Search(ctx, retrieval.SearchRequest{
		Collection: "refs", Vector: []float32{1, 0, 0}, Limit: 3,
		Filter: retrieval.NewTagFilter([]string{"finance"}, nil),
	})
	require.NoError(t, err)

	questions := make([]string, len(pairs))
	for i, p := range pairs {
		questions[i] = p.Question
	}
	assert.Equal(t, []string{"finance", "untagged"}, questions)
}

func TestStore_DroppedTagsKeepUntaggedOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "refs", []retrieval.Record{
		{Question: "payroll", SQL: "SELECT * FROM payroll", Vector: []float32{1, 0, 0}, Tags: []string{"finance"}},
		{Question: "untagged", SQL: "SELECT 1", Vector: []float32{0.5, 0.5, 0}},
	}))

	pairs, err := s.Search(ctx, retrieval.SearchRequest{
		Collection: "refs", Vector: []float32{1, 0, 0}, Limit: 3,
		Filter: retrieval.NewTagFilter([]string{"1' OR '1'='1"}, nil),
	})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "untagged", pairs[0].Question)
}

func TestStore_UpsertByQuestion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "refs", []retrieval.Record{
		{Question: "count users", SQL: "SELECT count(id) FROM users", Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, s.Insert(ctx, "refs", []retrieval.Record{
		{Question: "count users", SQL: "SELECT count(*) FROM users", Vector: []float32{0, 0, 1}},
	}))

	n, err := s.Count(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pairs, err := s.Search(ctx, retrieval.SearchRequest{Collection: "refs", Vector: []float32{0, 0, 1}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "SELECT count(*) FROM users", pairs[0].SQL)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Insert(ctx, "refs", []retrieval.Record{{Question: "q", SQL: "SELECT 1", Vector: []float32{1}}})
	assert.ErrorContains(t, err, "store expects 3")

	_, err = s.Search(ctx, retrieval.SearchRequest{Collection: "refs", Vector: []float32{1, 2}, Limit: 1})
	assert.ErrorContains(t, err, "store expects 3")
}

func TestOpen_ReopensExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.db")
	s, err := Open(path, 3, nil)
	require.NoError(t, err)
	require.NoError(t, s.Insert(context.Background(), "refs", []retrieval.Record{
		{Question: "q", SQL: "SELECT 1", Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, s.Close())

	s, err = Open(path, 3, nil)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(context.Background(), "refs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Inspect(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	status, err := s.Inspect(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, retrieval.IndexStatus{Backend: "sqlite", Collection: "refs", Ready: true}, status)

	require.NoError(t, s.Insert(ctx, "refs", []retrieval.Record{
		{Question: "count users", SQL: "SELECT count(*) FROM users", Vector: []float32{1, 0, 0}},
		{Question: "list users", SQL: "SELECT * FROM users", Vector: []float32{0, 1, 0}},
	}))
	status, err = s.Inspect(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, 2, status.References)

	require.NoError(t, s.Close())
	_, err = s.Inspect(ctx, "refs")
	assert.ErrorContains(t, err, "count references")
}

func TestOpen_InvalidDimensions(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "refs.db"), 0, nil)
	assert.Error(t, err)
}

func TestSerializeFloat32(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0xc0}, serializeFloat32([]float32{1, -2}))
}
