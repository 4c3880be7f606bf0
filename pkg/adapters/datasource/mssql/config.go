package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/config"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod is "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map and auto-detects the
// auth method: client_id selects service_principal, a user selects sql.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

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

	if database, ok := options["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if encrypt, ok := options["encrypt"].(bool); ok {
		cfg.Encrypt = encrypt
	} else if encryptStr, ok := options["encrypt"].(string); ok {
		cfg.Encrypt = encryptStr == "true" || encryptStr == "strict"
	}
	if sslMode, ok := options["ssl_mode"].(string); ok && sslMode == "disable" {
		cfg.Encrypt = false
	}

	if trust, ok := options["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}

	if authMethod, ok := options["auth_method"].(string); ok && authMethod != "" {
		cfg.AuthMethod = authMethod
	} else if _, hasClientID := options["client_id"].(string); hasClientID {
		cfg.AuthMethod = "service_principal"
	} else if user, _ := options["user"].(string); user != "" {
		cfg.AuthMethod = "sql"
	} else {
		return nil, fmt.Errorf("could not auto-detect auth method; no credentials provided")
	}

	switch cfg.AuthMethod {
	case "sql":
		cfg.Username, _ = options["user"].(string)
		cfg.Password, _ = options["password"].(string)
	case "service_principal":
		cfg.TenantID, _ = options["tenant_id"].(string)
		cfg.ClientID, _ = options["client_id"].(string)
		cfg.ClientSecret, _ = options["client_secret"].(string)
	default:
		return nil, fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", cfg.AuthMethod)
	}

	return cfg, cfg.Validate()
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case "sql":
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case "service_principal":
		if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("tenant_id, client_id and client_secret are required for service principal")
		}
	}
	return nil
}

// connectionURL returns the driver name and DSN for cfg.
func connectionURL(cfg *Config) (driverName, dsn string) {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("encrypt", strconv.FormatBool(cfg.Encrypt))
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}

	u := url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", config.ResolveHostForDocker(cfg.Host), cfg.Port),
	}

	if cfg.AuthMethod == "service_principal" {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		u.RawQuery = query.Encode()
		return "azuresql", u.String()
	}

	u.User = url.UserPassword(cfg.Username, cfg.Password)
	u.RawQuery = query.Encode()
	return "sqlserver", u.String()
}
