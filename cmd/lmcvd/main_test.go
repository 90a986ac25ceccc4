package main

import (
	"math/big"
	"testing"

	"lmcv/config"
	"lmcv/core"
	"lmcv/fixed"
	"lmcv/state"
)

func newBootedNode(t *testing.T) (*core.Node, [20]byte) {
	t.Helper()
	var admin, treasury [20]byte
	admin[19] = 0x01
	treasury[19] = 0x02
	node := core.NewNode(core.Config{ChainID: 1, Admin: admin, Treasury: treasury}, state.NewManager(), nil, nil)
	if err := node.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return node, admin
}

func TestApplyConfigStakingLimitIsWadScale(t *testing.T) {
	node, admin := newBootedNode(t)
	cfg := &config.Config{
		Liquidation: config.LiquidationConfig{Penalty: "1"},
		Bridge:      config.BridgeConfig{TeleportFee: "0"},
		Staking:     config.StakingConfig{MintRatio: "1", AmountLimit: "1000"},
	}
	if err := applyConfig(node, cfg, admin); err != nil {
		t.Fatalf("apply config: %v", err)
	}
	g, err := node.GetStakingGlobals()
	if err != nil {
		t.Fatalf("staking globals: %v", err)
	}
	// Whole tokens scale to Wad, the unit TotalLocked is compared in.
	want := new(big.Int).Mul(big.NewInt(1000), fixed.Wad)
	if g.StakedAmountLimit.Cmp(want) != 0 {
		t.Fatalf("staked amount limit: got %s want %s", g.StakedAmountLimit, want)
	}
}

func TestApplyConfigRegistersRewardTokensAndRemotes(t *testing.T) {
	node, admin := newBootedNode(t)
	cfg := &config.Config{
		Liquidation: config.LiquidationConfig{Penalty: "1"},
		Bridge: config.BridgeConfig{
			TeleportFee:    "0.01",
			TrustedRemotes: map[string]string{"7": "0x0000000000000000000000000000000000000030"},
		},
		Staking: config.StakingConfig{MintRatio: "1", RewardTokens: []string{"FOO"}},
	}
	if err := applyConfig(node, cfg, admin); err != nil {
		t.Fatalf("apply config: %v", err)
	}
	g, err := node.GetStakingGlobals()
	if err != nil {
		t.Fatalf("staking globals: %v", err)
	}
	if len(g.RewardTokens) != 1 || g.RewardTokens[0] != "FOO" {
		t.Fatalf("reward tokens: %v", g.RewardTokens)
	}
}
