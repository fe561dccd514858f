// Package config loads simulator configuration from a yaml file with
// flag-based fallbacks.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/forkguard/dexsim/internal/services/riskgate"
)

// Config is the fully parsed simulator configuration.
type Config struct {
	// FeeBps default pool fee in basis points.
	FeeBps int64
	// Accounts seeds the ledger: account -> token -> starting balance.
	Accounts map[string]map[string]decimal.Decimal
	// Forks is the static risk table: identity prefix -> fork record.
	Forks riskgate.Table
	// Genuine lists identities registered as original deployments.
	Genuine []string
	// BlockForks is the gate policy toggle (default true).
	BlockForks bool
	// UnknownRiskThreshold blocks unknowns above this risk score; zero disables.
	UnknownRiskThreshold decimal.Decimal
	// ForkFeedURL overrides the protocols feed endpoint; empty disables the feed.
	ForkFeedURL string
	// MinTVL filters feed entries below this TVL.
	MinTVL decimal.Decimal
	// RefreshInterval between fork table re-pulls.
	RefreshInterval time.Duration
	// WebAddr for the SSE reporting server; empty disables it.
	WebAddr string
	// WalDir holds the trade journal.
	WalDir string
}

type forkEntryTmp struct {
	Name       string `yaml:"name"`
	ForkedFrom string `yaml:"forked_from"`
	TVL        string `yaml:"tvl,omitempty"`
}

type configTmp struct {
	FeeBps               *int64                       `yaml:"fee_bps,omitempty"`
	Accounts             map[string]map[string]string `yaml:"accounts,omitempty"`
	Forks                map[string]forkEntryTmp      `yaml:"forks,omitempty"`
	Genuine              []string                     `yaml:"genuine,omitempty"`
	BlockForks           *bool                        `yaml:"block_forks,omitempty"`
	UnknownRiskThreshold string                       `yaml:"unknown_risk_threshold,omitempty"`
	ForkFeedURL          string                       `yaml:"fork_feed_url,omitempty"`
	MinTVL               string                       `yaml:"min_tvl,omitempty"`
	RefreshInterval      time.Duration                `yaml:"refresh_interval,omitempty"`
	WebAddr              string                       `yaml:"web_addr,omitempty"`
	WalDir               string                       `yaml:"wal_dir,omitempty"`
}

// Get parses flags and loads the configuration, falling back to
// defaults when no yaml path is provided.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	flag.Parse()

	if *path == "" {
		return defaults(), nil
	}
	return FromFile(*path)
}

// FromFile loads and validates a yaml configuration file.
func FromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := defaults()

	if tmp.FeeBps != nil {
		if *tmp.FeeBps < 0 || *tmp.FeeBps >= 10000 {
			return Config{}, fmt.Errorf("incorrect 'fee_bps' param: %d (must be in [0,10000))", *tmp.FeeBps)
		}
		cfg.FeeBps = *tmp.FeeBps
	}

	if len(tmp.Accounts) > 0 {
		cfg.Accounts = make(map[string]map[string]decimal.Decimal, len(tmp.Accounts))
		for account, balances := range tmp.Accounts {
			parsed := make(map[string]decimal.Decimal, len(balances))
			for token, amount := range balances {
				value, err := decimal.NewFromString(amount)
				if err != nil {
					return Config{}, fmt.Errorf("incorrect balance for %s/%s: %w", account, token, err)
				}
				if value.LessThan(decimal.Zero) {
					return Config{}, fmt.Errorf("negative starting balance for %s/%s", account, token)
				}
				parsed[token] = value
			}
			cfg.Accounts[account] = parsed
		}
	}

	if len(tmp.Forks) > 0 {
		cfg.Forks = make(riskgate.Table, len(tmp.Forks))
		for prefix, entry := range tmp.Forks {
			record := riskgate.ForkRecord{Name: entry.Name, ForkedFrom: entry.ForkedFrom}
			if entry.TVL != "" {
				record.TVL, err = decimal.NewFromString(entry.TVL)
				if err != nil {
					return Config{}, fmt.Errorf("incorrect 'tvl' for fork %s: %w", prefix, err)
				}
			}
			cfg.Forks[prefix] = record
		}
	}

	cfg.Genuine = tmp.Genuine
	if tmp.BlockForks != nil {
		cfg.BlockForks = *tmp.BlockForks
	}
	if tmp.UnknownRiskThreshold != "" {
		cfg.UnknownRiskThreshold, err = decimal.NewFromString(tmp.UnknownRiskThreshold)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'unknown_risk_threshold' param: %w", err)
		}
	}
	if tmp.ForkFeedURL != "" {
		cfg.ForkFeedURL = tmp.ForkFeedURL
	}
	if tmp.MinTVL != "" {
		cfg.MinTVL, err = decimal.NewFromString(tmp.MinTVL)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'min_tvl' param: %w", err)
		}
	}
	if tmp.RefreshInterval > 0 {
		cfg.RefreshInterval = tmp.RefreshInterval
	}
	if tmp.WebAddr != "" {
		cfg.WebAddr = tmp.WebAddr
	}
	if tmp.WalDir != "" {
		cfg.WalDir = tmp.WalDir
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		FeeBps: 30,
		Accounts: map[string]map[string]decimal.Decimal{
			"alice": {"USDC": decimal.NewFromInt(10000), "ETH": decimal.NewFromInt(5)},
			"bob":   {"USDC": decimal.NewFromInt(10000), "ETH": decimal.NewFromInt(5)},
		},
		BlockForks:      true,
		MinTVL:          decimal.NewFromInt(1_000_000),
		RefreshInterval: time.Hour,
		WebAddr:         ":8080",
		WalDir:          "./wal/trades",
	}
}
