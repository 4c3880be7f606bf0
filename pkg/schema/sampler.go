package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
)

// DefaultSampleValueMaxLen bounds a single sampled string value.
const DefaultSampleValueMaxLen = 100

// Sampler pulls random example rows and renders them as SQL tuples.
type Sampler struct {
	// MaxValueLen truncates long string values; zero or less means DefaultSampleValueMaxLen.
	MaxValueLen int
}

// Sample returns up to limit rendered rows from table. A non-positive limit
// returns an empty slice without touching the database.
func (s Sampler) Sample(ctx context.Context, q datasource.Querier, dialect datasource.Dialect, table, schema string, limit int) ([]string, error) {
	in, err := datasource.IntrospectorFor(dialect, schema)
	if err != nil {
		return nil, err
	}
	return s.sample(ctx, q, in, table, limit)
}

func (s Sampler) sample(ctx context.Context, q datasource.Querier, in datasource.SchemaIntrospector, table string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	rs, err := in.SampleRows(ctx, q, table, limit)
	if err != nil {
		return nil, apperrors.NewIntrospectionError(table, "sample rows", err)
	}

	samples := make([]string, 0, rs.Len())
	for _, row := range rs.Rows {
		samples = append(samples, s.renderRow(row))
	}
	return samples, nil
}

func (s Sampler) renderRow(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = s.renderValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (s Sampler) renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case int32, int16, int8, int, uint32, uint16, uint8, uint:
		return fmt.Sprintf("%d", val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return quote(val.Format("2006-01-02 15:04:05"))
	case []byte:
		return s.renderString(string(val))
	case string:
		return s.renderString(val)
	case fmt.Stringer:
		return s.renderString(val.String())
	default:
		return s.renderString(fmt.Sprint(val))
	}
}

func (s Sampler) renderString(v string) string {
	limit := s.MaxValueLen
	if limit <= 0 {
		limit = DefaultSampleValueMaxLen
	}
	return quote(logging.TruncateString(v, limit))
}

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
