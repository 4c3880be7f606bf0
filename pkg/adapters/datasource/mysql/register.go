package mysql

import (
	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Dialect:     datasource.MySQL,
			DisplayName: "MySQL",
			Description: "MySQL 8+, MariaDB 10.5+, Aurora MySQL",
		},
		Open: Open,
		NewIntrospector: func(schema string) datasource.SchemaIntrospector {
			return NewIntrospector(schema)
		},
	})
}
