package mssql

import (
	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
)

// SQL Server can be connected to but has no introspector, so schema
// description against it fails with apperrors.ErrUnsupportedDialect.
func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Dialect:     datasource.MSSQL,
			DisplayName: "Microsoft SQL Server",
			Description: "SQL Server 2019+, Azure SQL Database (connection only)",
		},
		Open: Open,
	})
}
