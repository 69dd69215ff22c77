package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"Gin_postgres_redis_library/circulation"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const defaultSweepInterval = time.Hour

// PolicyFile models the optional CIRCULATION_POLICY_FILE.
type PolicyFile struct {
	UnitFineRate   string `yaml:"unit_fine_rate"`
	Currency       string `yaml:"currency"`
	LoanDays       int    `yaml:"loan_days"`
	MaxActiveLoans int    `yaml:"max_active_loans"`
	SweepInterval  string `yaml:"sweep_interval"`
}

// Circulation is the resolved lending configuration.
type Circulation struct {
	Policy        circulation.Policy
	SweepInterval time.Duration
}

// LoadCirculation starts from the defaults, applies the YAML file when configured and then the
// environment: FINE_RATE_PER_DAY, CURRENCY, LOAN_DAYS, MAX_ACTIVE_LOANS, OVERDUE_SWEEP_INTERVAL.
func LoadCirculation() (Circulation, error) {
	cfg := Circulation{Policy: circulation.DefaultPolicy(), SweepInterval: defaultSweepInterval}

	if path := Get("CIRCULATION_POLICY_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read policy file: %w", err)
		}
		var pf PolicyFile
		if err := yaml.Unmarshal(raw, &pf); err != nil {
			return cfg, fmt.Errorf("config: parse policy file %s: %w", path, err)
		}
		if err := cfg.apply(pf); err != nil {
			return cfg, fmt.Errorf("config: policy file %s: %w", path, err)
		}
	}

	env := PolicyFile{
		UnitFineRate:  Get("FINE_RATE_PER_DAY", ""),
		Currency:      Get("CURRENCY", ""),
		SweepInterval: Get("OVERDUE_SWEEP_INTERVAL", ""),
	}
	var err error
	if env.LoanDays, err = atoiEnv("LOAN_DAYS"); err != nil {
		return cfg, err
	}
	if env.MaxActiveLoans, err = atoiEnv("MAX_ACTIVE_LOANS"); err != nil {
		return cfg, err
	}
	if err := cfg.apply(env); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Policy.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// apply overrides only the fields that are set.
func (c *Circulation) apply(pf PolicyFile) error {
	if pf.UnitFineRate != "" {
		rate, err := decimal.NewFromString(pf.UnitFineRate)
		if err != nil {
			return fmt.Errorf("unit fine rate %q: %w", pf.UnitFineRate, err)
		}
		c.Policy.UnitFineRate = rate
	}
	if pf.Currency != "" {
		c.Policy.Currency = pf.Currency
	}
	if pf.LoanDays != 0 {
		c.Policy.LoanDays = pf.LoanDays
	}
	if pf.MaxActiveLoans != 0 {
		c.Policy.MaxActiveLoans = pf.MaxActiveLoans
	}
	if pf.SweepInterval != "" {
		d, err := time.ParseDuration(pf.SweepInterval)
		if err != nil {
			return fmt.Errorf("sweep interval %q: %w", pf.SweepInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("sweep interval must be positive, got %s", d)
		}
		c.SweepInterval = d
	}
	return nil
}

func atoiEnv(key string) (int, error) {
	v := Get(key, "")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer", key, v)
	}
	return n, nil
}
