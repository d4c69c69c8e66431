package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where samantha stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// RedisAddr enables the fast shared session cache when set
	RedisAddr     string // SAMANTHA_REDIS_ADDR
	RedisPassword string // SAMANTHA_REDIS_PASSWORD
	RedisDB       int    // SAMANTHA_REDIS_DB

	// OpenAI configuration
	OpenAIAPIKey  string // SAMANTHA_OPENAI_API_KEY
	OpenAIBaseURL string // SAMANTHA_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	OpenAIModel   string // SAMANTHA_OPENAI_MODEL (default: gpt-4o-mini)

	// JWTSecret signs and verifies access tokens
	JWTSecret string // SAMANTHA_JWT_SECRET

	// Tool credentials
	OpenWeatherAPIKey   string // SAMANTHA_OPENWEATHER_API_KEY
	CoinMarketCapAPIKey string // SAMANTHA_COINMARKETCAP_API_KEY

	// Session store bounds
	MaxCachedUsers      int // SAMANTHA_MAX_CACHED_USERS (default: 100)
	MaxHistoryPerUser   int // SAMANTHA_MAX_HISTORY_PER_USER (default: 5)
	MaxDocumentsPerUser int // SAMANTHA_MAX_DOCUMENTS_PER_USER (default: 3)

	// MaxToolHops bounds tool dispatches within one chat turn
	MaxToolHops int // SAMANTHA_MAX_TOOL_HOPS (default: 8)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring invalid integer environment variable", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}

// FromEnv loads configuration from SAMANTHA_* environment variables.
func (p *Profile) FromEnv() {
	p.RedisAddr = os.Getenv("SAMANTHA_REDIS_ADDR")
	p.RedisPassword = os.Getenv("SAMANTHA_REDIS_PASSWORD")
	p.RedisDB = getIntEnvOrDefault("SAMANTHA_REDIS_DB", 0)

	p.OpenAIAPIKey = os.Getenv("SAMANTHA_OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvOrDefault("SAMANTHA_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.OpenAIModel = getEnvOrDefault("SAMANTHA_OPENAI_MODEL", "gpt-4o-mini")

	p.JWTSecret = os.Getenv("SAMANTHA_JWT_SECRET")

	p.OpenWeatherAPIKey = os.Getenv("SAMANTHA_OPENWEATHER_API_KEY")
	p.CoinMarketCapAPIKey = os.Getenv("SAMANTHA_COINMARKETCAP_API_KEY")

	p.MaxCachedUsers = getIntEnvOrDefault("SAMANTHA_MAX_CACHED_USERS", 100)
	p.MaxHistoryPerUser = getIntEnvOrDefault("SAMANTHA_MAX_HISTORY_PER_USER", 5)
	p.MaxDocumentsPerUser = getIntEnvOrDefault("SAMANTHA_MAX_DOCUMENTS_PER_USER", 3)
	p.MaxToolHops = getIntEnvOrDefault("SAMANTHA_MAX_TOOL_HOPS", 8)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("samantha_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.OpenAIAPIKey == "" {
		return errors.New("an OpenAI API key is required")
	}
	if p.JWTSecret == "" {
		return errors.New("a JWT secret is required")
	}

	return nil
}
