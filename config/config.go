// Package config loads the daemon configuration from TOML.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress   string `toml:"ListenAddress"`
	DataDir         string `toml:"DataDir"`
	ServiceName     string `toml:"ServiceName"`
	Environment     string `toml:"Environment"`
	ChainID         uint32 `toml:"ChainID"`
	AdminAddress    string `toml:"AdminAddress"`
	TreasuryAddress string `toml:"TreasuryAddress"`
	// AccrualIntervalSeconds spaces the background interest accrual ticks.
	AccrualIntervalSeconds int64 `toml:"AccrualIntervalSeconds"`
	// SnapshotIntervalSeconds spaces the background state snapshots.
	SnapshotIntervalSeconds int64 `toml:"SnapshotIntervalSeconds"`

	Liquidation LiquidationConfig  `toml:"Liquidation"`
	Auction     AuctionConfig      `toml:"Auction"`
	Bridge      BridgeConfig       `toml:"Bridge"`
	Staking     StakingConfig      `toml:"Staking"`
	PSM         PSMConfig          `toml:"PSM"`
	Collateral  []CollateralConfig `toml:"Collateral"`
}

// CollateralConfig registers one collateral type at bootstrap. Prices and
// ratios are decimal strings ("7.61", "0.7"); amounts are whole tokens.
type CollateralConfig struct {
	Symbol            string `toml:"Symbol"`
	SpotPrice         string `toml:"SpotPrice"`
	CreditRatio       string `toml:"CreditRatio"`
	LockedAmountLimit string `toml:"LockedAmountLimit"`
	DustLevel         string `toml:"DustLevel"`
	Leveraged         bool   `toml:"Leveraged"`
}

type LiquidationConfig struct {
	// LotSize is the per-liquidation debt lot in whole stable tokens.
	LotSize string `toml:"LotSize"`
	// Penalty is the liquidation surcharge multiplier, at least "1".
	Penalty string `toml:"Penalty"`
}

type AuctionConfig struct {
	DurationSeconds  int64 `toml:"DurationSeconds"`
	BidWindowSeconds int64 `toml:"BidWindowSeconds"`
}

type BridgeConfig struct {
	// TeleportFee is the inbound fee fraction, below "1".
	TeleportFee string `toml:"TeleportFee"`
	// TrustedRemotes maps decimal chain ids to remote pipe addresses.
	TrustedRemotes map[string]string `toml:"TrustedRemotes"`
}

type StakingConfig struct {
	// MintRatio is the staked share minted per locked stakeable token.
	MintRatio string `toml:"MintRatio"`
	// AmountLimit caps total locked stakeable in whole tokens.
	AmountLimit string `toml:"AmountLimit"`
	// RewardTokens lists the reward token symbols to register.
	RewardTokens []string `toml:"RewardTokens"`
}

type PSMConfig struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
	MintFee  string `toml:"MintFee"`
	BurnFee  string `toml:"BurnFee"`
}

// Load reads the configuration at path, creating a default file when none
// exists. Defaults are filled in for optional fields; Validate still has to
// pass before the daemon starts.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "./lmcv-data"
	}
	if c.ServiceName == "" {
		c.ServiceName = "lmcvd"
	}
	if c.Environment == "" {
		c.Environment = "local"
	}
	if c.ChainID == 0 {
		c.ChainID = 1
	}
	if c.AccrualIntervalSeconds <= 0 {
		c.AccrualIntervalSeconds = 60
	}
	if c.SnapshotIntervalSeconds <= 0 {
		c.SnapshotIntervalSeconds = 300
	}
	if c.Liquidation.Penalty == "" {
		c.Liquidation.Penalty = "1"
	}
	if c.Bridge.TeleportFee == "" {
		c.Bridge.TeleportFee = "0"
	}
	if c.Staking.MintRatio == "" {
		c.Staking.MintRatio = "1"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
