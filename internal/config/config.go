package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	DBDriver   string
	DBLogLevel string
	DBTracing  bool

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	PostgresDSN string
	SQLitePath  string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int
	LockTTLSecs  int
	CacheTTLSecs int

	ProviderTimeout    time.Duration
	RetryAuditFailures bool
	RiskCheckCodes     []string
	RiskLevels         []string

	CatalogFile string

	LogLevel  string
	LogFormat string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getbool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func getlist(k, d string) []string {
	var out []string
	for _, p := range strings.Split(getenv(k, d), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the environment, after merging a .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort: getenv("APP_PORT", "8080"),

		DBDriver:   strings.ToLower(getenv("DB_DRIVER", "mysql")),
		DBLogLevel: getenv("DB_LOG_LEVEL", "warn"),
		DBTracing:  getbool("DB_TRACING", false),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "affiliation"),
		MySQLUser: getenv("MYSQL_USER", "affiliation"),
		MySQLPass: getenv("MYSQL_PASS", "affiliation"),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		SQLitePath:  getenv("SQLITE_PATH", "affiliation.db"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisDB:   getint("REDIS_DB", 0),

		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),
		LockTTLSecs:  getint("LOCK_TTL_SECONDS", 30),
		CacheTTLSecs: getint("CATALOG_CACHE_TTL_SECONDS", 600),

		ProviderTimeout:    time.Duration(getint("PROVIDER_TIMEOUT_MS", 5000)) * time.Millisecond,
		RetryAuditFailures: getbool("RETRY_AUDIT_FAILURES", false),
		RiskCheckCodes:     getlist("RISK_CHECK_CODES", "PLAFT_RISK"),
		RiskLevels:         getlist("RISK_LEVELS", "medium,high"),

		CatalogFile: getenv("CATALOG_FILE", "configs/catalog.yaml"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
	}
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("missing POSTGRES_DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT_MS must be positive")
	}
	if len(c.RiskCheckCodes) == 0 || len(c.RiskLevels) == 0 {
		return errors.New("RISK_CHECK_CODES and RISK_LEVELS must not be empty")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case "postgres":
		return c.PostgresDSN
	case "sqlite":
		return c.SQLitePath
	default:
		return c.MySQLDSN()
	}
}

func (c *Config) IdempotencyTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }
func (c *Config) LockTTL() time.Duration        { return time.Duration(c.LockTTLSecs) * time.Second }
func (c *Config) CacheTTL() time.Duration       { return time.Duration(c.CacheTTLSecs) * time.Second }
