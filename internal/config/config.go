// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the reference and audit databases (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	AladdinBaseURL string // Vendor API base URL; empty = serve from local reference DB only
	AladdinTimeout time.Duration
	MockVendorData bool // Serve vendor data from the seeded reference DB instead of the network
	AuditRetention time.Duration
	Engine         EngineDefaults
}

// EngineDefaults holds allocation engine defaults. They are passed explicitly
// into every allocation call; the engine never reads ambient state.
type EngineDefaults struct {
	MinDenomination int64         // Fallback when a security carries no denomination
	MinAllocation   int64         // Smallest allocation an account may receive
	Tolerance       float64       // Relative objective improvement threshold for the solver
	MaxIterations   int           // Solver iteration cap
	SolverTimeout   time.Duration // Wall-clock bound for the min-dispersion solver
	RemainderPolicy string        // "nav_rank" or "residual"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ALLOCATOR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		AladdinBaseURL: getEnv("ALADDIN_BASE_URL", ""),
		AladdinTimeout: time.Duration(getEnvAsInt("ALADDIN_TIMEOUT_SECONDS", 10)) * time.Second,
		MockVendorData: getEnvAsBool("MOCK_VENDOR_DATA", true),
		AuditRetention: time.Duration(getEnvAsInt("AUDIT_RETENTION_DAYS", 90)) * 24 * time.Hour,
		Engine: EngineDefaults{
			MinDenomination: int64(getEnvAsInt("ENGINE_MIN_DENOMINATION", 1000)),
			MinAllocation:   int64(getEnvAsInt("ENGINE_MIN_ALLOCATION", 1000)),
			Tolerance:       getEnvAsFloat("ENGINE_TOLERANCE", 1e-6),
			MaxIterations:   getEnvAsInt("ENGINE_MAX_ITERATIONS", 1000),
			SolverTimeout:   time.Duration(getEnvAsInt("ENGINE_SOLVER_TIMEOUT_MS", 2000)) * time.Millisecond,
			RemainderPolicy: getEnv("ENGINE_REMAINDER_POLICY", "nav_rank"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Engine.MinDenomination <= 0 {
		return fmt.Errorf("ENGINE_MIN_DENOMINATION must be positive, got %d", c.Engine.MinDenomination)
	}
	if c.Engine.MaxIterations <= 0 {
		return fmt.Errorf("ENGINE_MAX_ITERATIONS must be positive, got %d", c.Engine.MaxIterations)
	}
	switch c.Engine.RemainderPolicy {
	case "nav_rank", "residual":
	default:
		return fmt.Errorf("ENGINE_REMAINDER_POLICY must be nav_rank or residual, got %q", c.Engine.RemainderPolicy)
	}
	if !c.MockVendorData && c.AladdinBaseURL == "" {
		return fmt.Errorf("ALADDIN_BASE_URL is required when MOCK_VENDOR_DATA is disabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
