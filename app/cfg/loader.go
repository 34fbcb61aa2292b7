package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBDriver   string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	DBPath     string `long:"db-path" env:"DB_PATH" default:"./newswire.db" description:"SQLite database file (sqlite driver)"`
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host (postgres driver)"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port (postgres driver)"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"newswire" description:"Database user (postgres driver)"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" description:"Database password (required for postgres)"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"newswire" description:"Database name (postgres driver)"`
	DBSSLMode  string `long:"db-sslmode" env:"DB_SSLMODE" default:"disable" description:"SSL mode (postgres driver)"`

	// Application configuration
	AgenciesDir string `long:"agencies-dir" env:"AGENCIES_DIR" default:"./agencies" description:"Directory containing agency configuration files"`

	// Application metadata
	LogFile string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file"`
	Debug   bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Run struct {
		Agencies []string `long:"agency" short:"a" description:"Agency to ingest (repeatable, default: all enabled)"`
	} `command:"run" description:"Run one ingestion pass over the configured agencies"`

	Maintain struct {
		SessionTTL    time.Duration `long:"session-ttl" env:"SESSION_TTL" default:"3h" description:"Close sessions logged in for longer than this"`
		BlockDuration time.Duration `long:"block-duration" env:"BLOCK_DURATION" default:"80m" description:"Unblock users blocked for at least this long"`
		Retention     time.Duration `long:"retention" env:"RETENTION" default:"720h" description:"Delete articles and processed files older than this"`
		PruneSessions bool          `long:"prune-sessions" env:"PRUNE_SESSIONS" description:"Also delete sessions logged out before the retention window"`
	} `command:"maintain" description:"Expire sessions, unblock users and prune old rows"`

	Migrate struct{} `command:"migrate" description:"Apply pending database migrations and exit"`

	Serve struct {
		Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
		BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://wire.example.com)"`
		APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	} `command:"serve" description:"Serve read-only ingestion statistics and per-agency feeds"`
}

// Load parses args and the environment. It returns nil, nil when help was
// requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	command := CommandRun
	if parser.Active != nil {
		command = parser.Active.Name
	}

	cfg := &Cfg{
		Command:       command,
		DBDriver:      raw.DBDriver,
		DBPath:        raw.DBPath,
		DBHost:        raw.DBHost,
		DBPort:        raw.DBPort,
		DBUser:        raw.DBUser,
		DBPassword:    raw.DBPassword,
		DBName:        raw.DBName,
		DBSSLMode:     raw.DBSSLMode,
		AgenciesDir:   raw.AgenciesDir,
		Agencies:      raw.Run.Agencies,
		SessionTTL:    raw.Maintain.SessionTTL,
		BlockDuration: raw.Maintain.BlockDuration,
		Retention:     raw.Maintain.Retention,
		PruneSessions: raw.Maintain.PruneSessions,
		Port:          raw.Serve.Port,
		BaseUrl:       raw.Serve.BaseUrl,
		APIAccessKey:  raw.Serve.APIAccessKey,
		LogFile:       raw.LogFile,
		Debug:         raw.Debug,
		Version:       GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.DBDriver == DriverPostgres && cfg.DBPassword == "" {
		return fmt.Errorf("db-password is required for the postgres driver")
	}
	if cfg.DBDriver == DriverSQLite && cfg.DBPath == "" {
		return fmt.Errorf("db-path is required for the sqlite driver")
	}
	if cfg.AgenciesDir == "" {
		return fmt.Errorf("agencies-dir is required")
	}
	return nil
}
