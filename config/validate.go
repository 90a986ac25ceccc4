package config

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"lmcv/fixed"
)

// Validate checks that every field the daemon depends on parses. It is called
// once at startup so later accessors can assume well-formed values.
func (c *Config) Validate() error {
	if _, err := c.Admin(); err != nil {
		return fmt.Errorf("AdminAddress: %w", err)
	}
	if _, err := c.Treasury(); err != nil {
		return fmt.Errorf("TreasuryAddress: %w", err)
	}
	if c.Liquidation.LotSize != "" {
		if _, err := fixed.ParseRad(c.Liquidation.LotSize); err != nil {
			return fmt.Errorf("Liquidation.LotSize: %w", err)
		}
	}
	if _, err := fixed.ParseRay(c.Liquidation.Penalty); err != nil {
		return fmt.Errorf("Liquidation.Penalty: %w", err)
	}
	if _, err := fixed.ParseRay(c.Bridge.TeleportFee); err != nil {
		return fmt.Errorf("Bridge.TeleportFee: %w", err)
	}
	for chainID, remote := range c.Bridge.TrustedRemotes {
		if _, err := strconv.ParseUint(chainID, 10, 32); err != nil {
			return fmt.Errorf("Bridge.TrustedRemotes: chain id %q: %w", chainID, err)
		}
		if _, err := ParseAddress(remote); err != nil {
			return fmt.Errorf("Bridge.TrustedRemotes[%s]: %w", chainID, err)
		}
	}
	if _, err := fixed.ParseRay(c.Staking.MintRatio); err != nil {
		return fmt.Errorf("Staking.MintRatio: %w", err)
	}
	if c.Staking.AmountLimit != "" {
		if _, err := fixed.ParseRad(c.Staking.AmountLimit); err != nil {
			return fmt.Errorf("Staking.AmountLimit: %w", err)
		}
	}
	if c.PSM.Symbol != "" {
		if c.PSM.Decimals > 18 {
			return fmt.Errorf("PSM.Decimals: %d exceeds 18", c.PSM.Decimals)
		}
		for name, fee := range map[string]string{"MintFee": c.PSM.MintFee, "BurnFee": c.PSM.BurnFee} {
			if fee == "" {
				continue
			}
			if _, err := fixed.ParseRay(fee); err != nil {
				return fmt.Errorf("PSM.%s: %w", name, err)
			}
		}
	}
	for i, entry := range c.Collateral {
		if strings.TrimSpace(entry.Symbol) == "" {
			return fmt.Errorf("Collateral[%d]: empty symbol", i)
		}
		for name, value := range map[string]string{
			"SpotPrice":   entry.SpotPrice,
			"CreditRatio": entry.CreditRatio,
		} {
			if _, err := fixed.ParseRay(value); err != nil {
				return fmt.Errorf("Collateral[%d].%s: %w", i, name, err)
			}
		}
		if _, err := fixed.ParseWad(entry.LockedAmountLimit); err != nil {
			return fmt.Errorf("Collateral[%d].LockedAmountLimit: %w", i, err)
		}
		if entry.DustLevel != "" {
			if _, err := fixed.ParseWad(entry.DustLevel); err != nil {
				return fmt.Errorf("Collateral[%d].DustLevel: %w", i, err)
			}
		}
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, err
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// Admin returns the parsed admin address.
func (c *Config) Admin() ([20]byte, error) {
	return ParseAddress(c.AdminAddress)
}

// Treasury returns the parsed treasury address.
func (c *Config) Treasury() ([20]byte, error) {
	return ParseAddress(c.TreasuryAddress)
}
