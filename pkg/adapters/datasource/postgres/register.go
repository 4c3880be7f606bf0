package postgres

import (
	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Dialect:     datasource.Postgres,
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		Open: Open,
		NewIntrospector: func(schema string) datasource.SchemaIntrospector {
			return NewIntrospector(schema)
		},
	})
}
