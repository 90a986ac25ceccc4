package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
ListenAddress = ":9090"
DataDir = "/tmp/lmcv-test"
ChainID = 7
AdminAddress = "0x0000000000000000000000000000000000000001"
TreasuryAddress = "0x0000000000000000000000000000000000000002"

[Liquidation]
LotSize = "300"
Penalty = "1.1"

[Auction]
DurationSeconds = 172800
BidWindowSeconds = 10800

[Bridge]
TeleportFee = "0.01"
[Bridge.TrustedRemotes]
"101" = "0x0000000000000000000000000000000000000030"

[Staking]
MintRatio = "1"
AmountLimit = "1000"
RewardTokens = ["RWD"]

[PSM]
Symbol = "USDC"
Decimals = 6
MintFee = "0"
BurnFee = "0.001"

[[Collateral]]
Symbol = "FOO"
SpotPrice = "7.61"
CreditRatio = "0.7"
LockedAmountLimit = "10000"
DustLevel = "0.1"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lmcvd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, uint32(7), cfg.ChainID)
	require.Equal(t, "1.1", cfg.Liquidation.Penalty)
	require.Equal(t, int64(172800), cfg.Auction.DurationSeconds)
	require.Equal(t, "0x0000000000000000000000000000000000000030", cfg.Bridge.TrustedRemotes["101"])
	require.Len(t, cfg.Collateral, 1)
	require.Equal(t, "FOO", cfg.Collateral[0].Symbol)

	admin, err := cfg.Admin()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), admin[19])
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "lmcvd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "lmcvd", cfg.ServiceName)
	require.Equal(t, int64(60), cfg.AccrualIntervalSeconds)
	require.FileExists(t, path)

	// The written file loads back to the same defaults.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, again.ListenAddress)
}

func TestValidateRejectsBadAddress(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Replace(sampleConfig,
		`AdminAddress = "0x0000000000000000000000000000000000000001"`,
		`AdminAddress = "0xnope"`, 1)))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "AdminAddress")
}

func TestValidateRejectsBadDecimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Replace(sampleConfig,
		`Penalty = "1.1"`, `Penalty = "ten"`, 1)))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Liquidation.Penalty")
}

func TestValidateRejectsOversizedPSMDecimals(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Replace(sampleConfig,
		`Decimals = 6`, `Decimals = 19`, 1)))
	require.NoError(t, err)
	require.Error(t, cfg.Validate())
}

func TestParseAddressVariants(t *testing.T) {
	want := [20]byte{19: 0xab}
	got, err := ParseAddress("00000000000000000000000000000000000000ab")
	require.NoError(t, err)
	require.Equal(t, want, got)
	got, err = ParseAddress("0x00000000000000000000000000000000000000AB")
	require.NoError(t, err)
	require.Equal(t, want, got)
	_, err = ParseAddress("0xab")
	require.Error(t, err)
}
