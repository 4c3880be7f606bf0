package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/config"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "preferred", "require", "verify-full"
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromMap creates a Config from a generic config map.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{Port: DefaultPort(), SSLMode: "preferred"}

	if host, ok := options["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := options["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := options["port"].(int); ok && port > 0 {
		cfg.Port = port
	}

	if user, ok := options["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := options["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := options["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if sslMode, ok := options["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}

	return cfg, nil
}

// tlsParam maps the postgres-style ssl_mode vocabulary onto the driver's tls values.
func tlsParam(sslMode string) string {
	switch sslMode {
	case "disable":
		return "false"
	case "require", "verify-ca":
		return "skip-verify"
	case "verify-full":
		return "true"
	default:
		return "preferred"
	}
}

// buildDSN renders a go-sql-driver DSN. parseTime is enabled so DATETIME
// samples scan as time.Time.
func buildDSN(cfg *Config) string {
	dc := driver.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.Timeout = 10 * time.Second
	dc.TLSConfig = tlsParam(cfg.SSLMode)
	return dc.FormatDSN()
}
