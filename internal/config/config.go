// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/frontier"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Directory for the SQLite database and exports (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	StartDate       time.Time
	RiskFreeRate    float64 // Annual
	FixedIncomeRate float64 // Annual rate of the constant-return asset
	PeriodsPerYear  int

	Simulations int
	Workers     int
	Seed        uint64 // 0 means a fresh seed per run

	AcceptRule      string
	AcceptThreshold float64

	RefreshSchedule string

	BackupSchedule      string // Empty disables backups
	BackupRetentionDays int

	ExportS3Bucket string
	ExportS3Prefix string

	Portfolio Portfolio
}

// Portfolio describes the asset universe and the allocations to analyze
type Portfolio struct {
	FixedIncome string             `yaml:"fixed_income"`
	Assets      []domain.Asset     `yaml:"assets"`
	Allocation  map[string]float64 `yaml:"allocation"` // Explicit allocation for single-portfolio analysis
	Pinned      map[string]float64 `yaml:"pinned"`     // Fixed weights for the Monte Carlo run (0 = free)
}

// DefaultPortfolio is the Brazilian multi-asset portfolio analyzed when no file is given
func DefaultPortfolio() Portfolio {
	return Portfolio{
		FixedIncome: "SELIC",
		Assets: []domain.Asset{
			{Label: "IFIX", Source: "XFIX11.SA"},
			{Label: "IBOV", Source: "BOVA11.SA"},
			{Label: "IVVB11", Source: "IVVB11.SA"},
			{Label: "BTC", Source: "HASH11.SA"},
			{Label: "SELIC"},
		},
		Allocation: map[string]float64{
			"IFIX":   0.0487,
			"IBOV":   0.2025,
			"IVVB11": 0.2164,
			"BTC":    0.0586,
			"SELIC":  0.4738,
		},
		Pinned: map[string]float64{},
	}
}

// AssetSet builds the ordered asset set
func (p Portfolio) AssetSet() (domain.AssetSet, error) {
	return domain.NewAssetSet(p.Assets...)
}

// Labels returns the asset labels in declaration order
func (p Portfolio) Labels() []string {
	labels := make([]string, len(p.Assets))
	for i, a := range p.Assets {
		labels[i] = a.Label
	}
	return labels
}

// Validate checks the portfolio definition is self-consistent
func (p Portfolio) Validate() error {
	set, err := p.AssetSet()
	if err != nil {
		return fmt.Errorf("invalid assets: %w", err)
	}
	if set.Len() == 0 {
		return fmt.Errorf("portfolio has no assets")
	}
	for _, a := range p.Assets {
		if a.Label != p.FixedIncome && a.Source == "" {
			return fmt.Errorf("asset %s has no data source", a.Label)
		}
	}
	if p.FixedIncome != "" {
		if _, ok := set.Index(p.FixedIncome); !ok {
			return fmt.Errorf("fixed income asset %s is not in the asset list", p.FixedIncome)
		}
	}
	if _, err := set.Weights(p.Allocation); err != nil {
		return fmt.Errorf("invalid allocation: %w", err)
	}
	if _, err := set.Weights(p.Pinned); err != nil {
		return fmt.Errorf("invalid pinned weights: %w", err)
	}
	return nil
}

// LoadPortfolio reads a YAML portfolio definition
func LoadPortfolio(path string) (Portfolio, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Portfolio{}, fmt.Errorf("failed to read portfolio file: %w", err)
	}

	var p Portfolio
	if err := yaml.Unmarshal(content, &p); err != nil {
		return Portfolio{}, fmt.Errorf("failed to parse portfolio file: %w", err)
	}
	if p.Pinned == nil {
		p.Pinned = map[string]float64{}
	}
	return p, nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("FRONTIER_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	startDate, err := time.Parse("2006-01-02", getEnv("START_DATE", "2016-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid START_DATE: %w", err)
	}

	riskFree := getEnvAsFloat("RISK_FREE_RATE", 0.15)

	cfg := &Config{
		DataDir:         absDataDir,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("PORT", 8001),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		StartDate:       startDate,
		RiskFreeRate:    riskFree,
		FixedIncomeRate: getEnvAsFloat("FIXED_INCOME_RATE", riskFree),
		PeriodsPerYear:  getEnvAsInt("PERIODS_PER_YEAR", 12),
		Simulations:     getEnvAsInt("SIMULATIONS", frontier.DefaultSimulations),
		Workers:         getEnvAsInt("SIMULATION_WORKERS", runtime.NumCPU()),
		Seed:            uint64(getEnvAsInt("SIMULATION_SEED", 0)),
		AcceptRule:      getEnv("ACCEPT_RULE", frontier.RuleReturnOverRisk),
		AcceptThreshold: getEnvAsFloat("ACCEPT_THRESHOLD", 1.0),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 0 6 1 * *"),
		ExportS3Bucket:  getEnv("EXPORT_S3_BUCKET", ""),
		ExportS3Prefix:  getEnv("EXPORT_S3_PREFIX", "frontier"),
		Portfolio:       DefaultPortfolio(),

		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}

	if path := getEnv("PORTFOLIO_FILE", ""); path != "" {
		p, err := LoadPortfolio(path)
		if err != nil {
			return nil, err
		}
		cfg.Portfolio = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.PeriodsPerYear <= 0 {
		return fmt.Errorf("PERIODS_PER_YEAR must be positive")
	}
	if c.Simulations <= 0 {
		return fmt.Errorf("SIMULATIONS must be positive")
	}
	if _, err := frontier.ParseAcceptance(c.AcceptRule, c.AcceptThreshold); err != nil {
		return err
	}
	return c.Portfolio.Validate()
}

// Acceptance returns the configured acceptability filter
func (c *Config) Acceptance() frontier.Acceptance {
	accept, err := frontier.ParseAcceptance(c.AcceptRule, c.AcceptThreshold)
	if err != nil {
		return frontier.DefaultAcceptance
	}
	return accept
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
