package datasource

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

// Dialect identifies a relational engine flavor.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	MSSQL    Dialect = "mssql"
)

var dialectAliases = map[string]Dialect{
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pg":         Postgres,
	"mysql":      MySQL,
	"mariadb":    MySQL,
	"mssql":      MSSQL,
	"sqlserver":  MSSQL,
}

// ParseDialect maps a configured datasource type onto a Dialect.
// Unknown names wrap apperrors.ErrUnsupportedDialect.
func ParseDialect(s string) (Dialect, error) {
	if d, ok := dialectAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDialect, s)
}

func (d Dialect) String() string {
	return string(d)
}

// DisplayName is the human-readable name used in prompts.
func (d Dialect) DisplayName() string {
	switch d {
	case Postgres:
		return "PostgreSQL"
	case MySQL:
		return "MySQL"
	case MSSQL:
		return "Microsoft SQL Server"
	default:
		return string(d)
	}
}
