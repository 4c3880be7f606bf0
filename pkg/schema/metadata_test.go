package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTableMetadata_Document(t *testing.T) {
	tests := []struct {
		name    string
		samples []string
		want    string
	}{
		{
			name:    "with samples",
			samples: []string{"(1, 'a@b.com')", "(2, NULL)"},
			want: "-- users: registered accounts\n" + usersDDL + "\n" +
				"-- Example Values:\n(1, 'a@b.com')\n(2, NULL)",
		},
		{
			name: "no samples omits footer",
			want: "-- users: registered accounts\n" + usersDDL + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewTableMetadata("users", "registered accounts", usersDDL, tt.samples)
			assert.Equal(t, tt.want, md.Document())
			assert.Equal(t, tt.want, md.String())
			assert.False(t, md.Degraded)
		})
	}
}

func TestPlaceholder(t *testing.T) {
	md := Placeholder("orders", errors.New("permission denied for table orders"))

	assert.True(t, md.Degraded)
	assert.Empty(t, md.DDL)
	assert.Empty(t, md.Samples)
	assert.Equal(t, "Can't get schema info for table orders: permission denied for table orders", md.Description)
	assert.Equal(t, "-- orders: Can't get schema info for table orders: permission denied for table orders\n\n", md.Document())
}

func TestPlaceholder_SanitizesCause(t *testing.T) {
	md := Placeholder("orders", errors.New("dial postgresql://admin:hunter2@db:5432/app failed"))
	assert.NotContains(t, md.Document(), "hunter2")
}
