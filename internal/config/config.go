package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config carries every runtime option the core recognizes.
type Config struct {
	// Environment selects production validations vs developer tolerances.
	Environment string

	// DataSource names the storage backend. Postgres is the only supported
	// mode in production; tests swap in SQLite through the db package.
	DataSource string

	// BootstrapFromCSV enables one-shot seeding from local CSV dumps when
	// the database is empty.
	BootstrapFromCSV bool
	BootstrapCSVDir  string

	// AutoBackupOnNewTransaction schedules an async snapshot after each
	// committed transaction.
	AutoBackupOnNewTransaction bool

	// Feature flags gating the operational surfaces.
	FeatureBackupRestore bool
	FeatureFeeSafety     bool

	// Fee engine parameters.
	FeeRate    decimal.Decimal
	HurdleRate decimal.Decimal
	SeedPrice  decimal.Decimal
	DustUnits  decimal.Decimal

	// WriteGateTimeout bounds how long a mutation waits for the write lock.
	WriteGateTimeout time.Duration

	// BackupDir is the export directory for snapshot archives.
	BackupDir string
}

// Default returns the configuration with every option at its documented default.
func Default() *Config {
	return &Config{
		Environment:                "development",
		DataSource:                 "postgres",
		BootstrapFromCSV:           false,
		BootstrapCSVDir:            "./seed",
		AutoBackupOnNewTransaction: false,
		FeatureBackupRestore:       true,
		FeatureFeeSafety:           true,
		FeeRate:                    decimal.NewFromFloat(0.20),
		HurdleRate:                 decimal.NewFromFloat(0.06),
		SeedPrice:                  decimal.NewFromInt(10000),
		DustUnits:                  decimal.New(1, -9),
		WriteGateTimeout:           10 * time.Second,
		BackupDir:                  "./backups",
	}
}

// FromEnv builds a Config from environment variables, falling back to Default.
func FromEnv() *Config {
	c := Default()
	c.Environment = getEnv("APP_ENV", c.Environment)
	c.DataSource = getEnv("DATA_SOURCE", c.DataSource)
	c.BootstrapFromCSV = getBool("POSTGRES_BOOTSTRAP_FROM_CSV", c.BootstrapFromCSV)
	c.BootstrapCSVDir = getEnv("BOOTSTRAP_CSV_DIR", c.BootstrapCSVDir)
	c.AutoBackupOnNewTransaction = getBool("AUTO_BACKUP_ON_NEW_TRANSACTION", c.AutoBackupOnNewTransaction)
	c.FeatureBackupRestore = getBool("FEATURE_BACKUP_RESTORE", c.FeatureBackupRestore)
	c.FeatureFeeSafety = getBool("FEATURE_FEE_SAFETY", c.FeatureFeeSafety)
	c.FeeRate = getDecimal("FEE_RATE", c.FeeRate)
	c.HurdleRate = getDecimal("HURDLE_RATE", c.HurdleRate)
	c.SeedPrice = getDecimal("SEED_PRICE", c.SeedPrice)
	c.DustUnits = getDecimal("DUST_UNITS", c.DustUnits)
	c.BackupDir = getEnv("BACKUP_DIR", c.BackupDir)

	if ms := os.Getenv("WRITE_GATE_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			c.WriteGateTimeout = time.Duration(v) * time.Millisecond
		}
	}
	return c
}

// Production reports whether strict production validations apply.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if v, err := decimal.NewFromString(value); err == nil {
			return v
		}
	}
	return defaultValue
}
