/*
Package config loads server configuration.

Sources, in increasing precedence: built-in defaults (the stock rates
and caps), an optional YAML file, then BANK_* environment variables.
Biller account patterns are compiled during load so a bad pattern fails
startup instead of the first payment.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/meridian/bank-ledger/bank"
	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// CONFIG
// =============================================================================

type TierConfig struct {
	InterestRate         float64 `mapstructure:"interest_rate"`
	WithdrawLimit        float64 `mapstructure:"withdraw_limit"`
	TransferLimit        float64 `mapstructure:"transfer_limit"`
	MonthlyTransferLimit float64 `mapstructure:"monthly_transfer_limit"`
}

type BillerConfig struct {
	Name           string `mapstructure:"name"`
	AccountPattern string `mapstructure:"account_pattern"`
}

type Config struct {
	Port       int    `mapstructure:"port"`
	SQLitePath string `mapstructure:"sqlite_path"`

	WithdrawalTaxRate float64 `mapstructure:"withdrawal_tax_rate"`
	OTPHighValue      float64 `mapstructure:"otp_high_value"`
	GiftAmount        float64 `mapstructure:"gift_amount"`

	Tiers   map[string]TierConfig   `mapstructure:"tiers"`
	Billers map[string]BillerConfig `mapstructure:"billers"`

	AdminUsername string `mapstructure:"admin_username"`

	Sweep struct {
		Enabled         bool `mapstructure:"enabled"`
		IntervalSeconds int  `mapstructure:"interval_seconds"`
	} `mapstructure:"sweep"`
}

// Load reads configuration from path (optional) plus BANK_* environment
// variables, on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.WithdrawalTaxRate < 0 || cfg.WithdrawalTaxRate >= 1 {
		return nil, fmt.Errorf("withdrawal_tax_rate %v out of range [0,1)", cfg.WithdrawalTaxRate)
	}

	// Compile biller patterns now: invalid patterns fail the load.
	if _, err := cfg.BillerRegistry(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("sqlite_path", "./data/bank.db")
	v.SetDefault("withdrawal_tax_rate", 0.02)
	v.SetDefault("otp_high_value", 5000)
	v.SetDefault("gift_amount", 500)
	v.SetDefault("admin_username", "admin")
	v.SetDefault("sweep.enabled", false)
	v.SetDefault("sweep.interval_seconds", 3600)

	v.SetDefault("tiers.savings.interest_rate", 0.015)
	v.SetDefault("tiers.savings.withdraw_limit", 10000)
	v.SetDefault("tiers.savings.transfer_limit", 10000)
	v.SetDefault("tiers.savings.monthly_transfer_limit", 50000)

	v.SetDefault("tiers.checking.interest_rate", 0.005)
	v.SetDefault("tiers.checking.withdraw_limit", 50000)
	v.SetDefault("tiers.checking.transfer_limit", 50000)
	v.SetDefault("tiers.checking.monthly_transfer_limit", 200000)

	v.SetDefault("tiers.premium.interest_rate", 0.025)
	v.SetDefault("tiers.premium.withdraw_limit", 100000)
	v.SetDefault("tiers.premium.transfer_limit", 100000)
	v.SetDefault("tiers.premium.monthly_transfer_limit", 300000)

	v.SetDefault("billers.electric.name", "City Electric")
	v.SetDefault("billers.electric.account_pattern", `^\d{10}$`)
	v.SetDefault("billers.water.name", "Metro Water")
	v.SetDefault("billers.water.account_pattern", `^\d{8}$`)
	v.SetDefault("billers.internet.name", "FiberNet")
	v.SetDefault("billers.internet.account_pattern", `^\d{12}$`)
	v.SetDefault("billers.phone.name", "TeleCom Mobile")
	v.SetDefault("billers.phone.account_pattern", `^\d{11}$`)
}

// LedgerConfig converts the loaded values into the engine's Config.
func (c *Config) LedgerConfig() ledger.Config {
	out := ledger.Config{
		WithdrawalTaxRate: decimal.NewFromFloat(c.WithdrawalTaxRate),
		GiftAmount:        decimal.NewFromFloat(c.GiftAmount),
		Tiers:             make(map[ledger.Tier]ledger.TierParams),
	}
	for name, t := range c.Tiers {
		out.Tiers[ledger.Tier(name)] = ledger.TierParams{
			InterestRate:         decimal.NewFromFloat(t.InterestRate),
			WithdrawLimit:        decimal.NewFromFloat(t.WithdrawLimit),
			TransferLimit:        decimal.NewFromFloat(t.TransferLimit),
			MonthlyTransferLimit: decimal.NewFromFloat(t.MonthlyTransferLimit),
		}
	}
	return out
}

// BillerRegistry compiles the configured biller patterns.
func (c *Config) BillerRegistry() (*bank.BillerRegistry, error) {
	defs := make(map[string]struct {
		Name    string
		Pattern string
	})
	for id, b := range c.Billers {
		defs[id] = struct {
			Name    string
			Pattern string
		}{Name: b.Name, Pattern: b.AccountPattern}
	}
	return bank.NewBillerRegistry(defs)
}

// OTPThreshold returns the high-value confirmation threshold.
func (c *Config) OTPThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.OTPHighValue)
}
