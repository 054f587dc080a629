package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all orchestrator configuration
type Config struct {
	// Server
	Port string

	// Peer services
	ContentServerURL       string
	InstantiationServerURL string
	PeerTimeout            time.Duration
	PeerUser               string
	MockPeers              bool

	// Notification
	LMSURL string

	// Session registry
	DBPath      string
	MaxSessions int

	// Training catalog, saved configurations, and trainer database
	CatalogPath     string
	ConfigsPath     string
	UsersPath       string
	RequirePassword bool

	// CORS
	CORSOrigins []string
}

// Load loads configuration from environment variables, with an
// optional .env file for local development.
func Load() (*Config, error) {
	loadEnvFile(".env")

	timeout, err := time.ParseDuration(getEnv("PEER_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PEER_TIMEOUT: %w", err)
	}
	maxSessions, err := strconv.Atoi(getEnv("MAX_SESSIONS", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
	}

	cfg := &Config{
		Port:                   getEnv("PORT", "8082"),
		ContentServerURL:       getEnv("CONTENT_SERVER_URL", ""),
		InstantiationServerURL: getEnv("INSTANTIATION_SERVER_URL", ""),
		PeerTimeout:            timeout,
		PeerUser:               getEnv("PEER_USER", "orchestrator"),
		MockPeers:              getEnv("MOCK_PEERS", "") == "true",
		LMSURL:                 getEnv("LMS_URL", ""),
		DBPath:                 getEnv("DB_PATH", "./orchestrator.db"),
		MaxSessions:            maxSessions,
		CatalogPath:            getEnv("CATALOG_PATH", "./database/catalog.yml"),
		ConfigsPath:            getEnv("CONFIGS_PATH", ""),
		UsersPath:              getEnv("USERS_PATH", ""),
		RequirePassword:        getEnv("REQUIRE_PASSWORD", "") == "true",
	}

	// Parse CORS origins
	corsOrigins := getEnv("CORS_ORIGINS", "*")
	if corsOrigins == "" || corsOrigins == "*" {
		cfg.CORSOrigins = []string{"*"}
	} else {
		origins := strings.Split(corsOrigins, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		cfg.CORSOrigins = origins
	}

	return cfg, nil
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if !c.MockPeers {
		if c.ContentServerURL == "" {
			return fmt.Errorf("CONTENT_SERVER_URL is required (or set MOCK_PEERS=true)")
		}
		if c.InstantiationServerURL == "" {
			return fmt.Errorf("INSTANTIATION_SERVER_URL is required (or set MOCK_PEERS=true)")
		}
		// Active sessions advertise this URL to trainees; an empty one
		// would make every notification unusable.
		if c.LMSURL == "" {
			return fmt.Errorf("LMS_URL is required (or set MOCK_PEERS=true)")
		}
	}
	if c.RequirePassword && c.UsersPath == "" {
		return fmt.Errorf("USERS_PATH is required when REQUIRE_PASSWORD is set")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		// .env file is optional
		return
	}
	defer file.Close()

	log.Printf("Loading environment from %s", filename)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove surrounding quotes if present
		value = strings.Trim(value, `"'`)

		// Only set if not already set in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
