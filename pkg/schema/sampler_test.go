package schema

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

func TestSampler_Postgres(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sales"."orders" ORDER BY random() LIMIT $1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "note", "paid"}).
			AddRow(int64(7), "it's late", true).
			AddRow(int64(8), nil, false))

	samples, err := Sampler{}.Sample(context.Background(), db, datasource.Postgres, "orders", "sales", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"(7, 'it''s late', true)", "(8, NULL, false)"}, samples)
	assertSQLMock(t, mock)
}

func TestSampler_NonPositiveLimit(t *testing.T) {
	db, mock := newSQLMock(t)

	samples, err := Sampler{}.Sample(context.Background(), db, datasource.Postgres, "orders", "", 0)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.NotNil(t, samples)
	assertSQLMock(t, mock)
}

func TestSampler_EmptyTable(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY random()`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	samples, err := Sampler{}.Sample(context.Background(), db, datasource.Postgres, "orders", "", 3)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assertSQLMock(t, mock)
}

func TestSampler_UnsupportedDialect(t *testing.T) {
	db, mock := newSQLMock(t)

	_, err := Sampler{}.Sample(context.Background(), db, registerConnectionOnly(t), "orders", "", 3)
	require.ErrorIs(t, err, apperrors.ErrUnsupportedDialect)
	assertSQLMock(t, mock)
}

func TestSampler_RenderValue(t *testing.T) {
	s := Sampler{MaxValueLen: 5}
	ts := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "NULL"},
		{"int64", int64(-3), "-3"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"int32", int32(12), "12"},
		{"float", 12.5, "12.5"},
		{"bool", true, "true"},
		{"time", ts, "'2024-03-09 14:05:00'"},
		{"short string", "abc", "'abc'"},
		{"truncated string", "abcdefgh", "'abcde...'"},
		{"bytes", []byte("xy"), "'xy'"},
		{"quote", "o'k", "'o''k'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.renderValue(tt.value))
		})
	}
}

func TestSampler_DefaultMaxValueLen(t *testing.T) {
	got := Sampler{}.renderValue(strings.Repeat("x", DefaultSampleValueMaxLen+20))
	assert.Equal(t, "'"+strings.Repeat("x", DefaultSampleValueMaxLen)+"...'", got)
}
