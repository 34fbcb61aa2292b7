package cfg

import (
	"fmt"
	"net/url"
	"time"
)

const (
	CommandRun      = "run"
	CommandMaintain = "maintain"
	CommandMigrate  = "migrate"
	CommandServe    = "serve"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Cfg struct {
	Command string

	// Database configuration
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Ingestion
	AgenciesDir string
	Agencies    []string // empty means every enabled agency

	// Maintenance windows
	SessionTTL    time.Duration
	BlockDuration time.Duration
	Retention     time.Duration
	PruneSessions bool

	// Inspection server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Application metadata
	LogFile string
	Debug   bool
	Version string
}

// DSN returns the data source name for the configured driver.
func (c *Cfg) DSN() string {
	if c.DBDriver == DriverPostgres {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     fmt.Sprintf("%s:%s", c.DBHost, c.DBPort),
			Path:     "/" + c.DBName,
			RawQuery: url.Values{"sslmode": []string{c.DBSSLMode}}.Encode(),
		}
		return u.String()
	}
	return c.DBPath
}
