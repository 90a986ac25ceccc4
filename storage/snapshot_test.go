package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lmcv/native/auction"
	"lmcv/native/bridge"
	"lmcv/native/staking"
	"lmcv/native/vault"
	"lmcv/state"
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func rad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(45), nil))
}

func makeAddress(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

func populatedManager(t *testing.T) *state.Manager {
	t.Helper()
	m := state.NewManager()
	admin := makeAddress(0x01)
	alice := makeAddress(0x10)

	require.NoError(t, m.PutGlobals(&vault.Globals{
		AccumulatedRate:     big.NewInt(1),
		RatePerSecond:       big.NewInt(1),
		LastAccrual:         1_700_000_000,
		TotalNormalizedDebt: wad(500),
		TotalStable:         rad(-3),
		ProtocolDebtCeiling: rad(1_000_000),
		TotalDeficit:        big.NewInt(0),
		MintFee:             big.NewInt(0),
		Treasury:            makeAddress(0x02),
		ArchAdmin:           admin,
		Admins:              map[[20]byte]bool{admin: true},
	}))
	require.NoError(t, m.PutCollateralType(&vault.CollateralType{
		Symbol:            "FOO",
		SpotPrice:         big.NewInt(761),
		LockedAmount:      wad(50),
		LockedAmountLimit: wad(1000),
		DustLevel:         big.NewInt(0),
		CreditRatio:       big.NewInt(7),
		Leveraged:         true,
	}))
	require.NoError(t, m.PutVault(&vault.Vault{
		Owner:          alice,
		Unlocked:       map[string]*big.Int{"FOO": wad(5)},
		Locked:         map[string]*big.Int{"FOO": wad(50), "BAR": wad(800)},
		LockedList:     []string{"FOO", "BAR"},
		LockedIndex:    map[string]int{"FOO": 0, "BAR": 1},
		NormalizedDebt: wad(500),
		StableBalance:  rad(-7),
		Agents:         map[[20]byte]bool{admin: true},
	}))
	require.NoError(t, m.PutDeficit(makeAddress(0x02), rad(100)))
	require.NoError(t, m.PutAuction(&auction.Auction{
		ID:            3,
		LotSymbols:    []string{"FOO"},
		OriginalLot:   map[string]*big.Int{"FOO": wad(50)},
		Lot:           map[string]*big.Int{"FOO": wad(40)},
		AskingAmount:  rad(550),
		DebtBid:       rad(550),
		CurrentWinner: alice,
		Liquidated:    makeAddress(0x11),
		Treasury:      makeAddress(0x02),
		AuctionExpiry: 1_700_172_800,
		BidExpiry:     1_700_010_800,
		LotFraction:   big.NewInt(9),
	}))
	require.NoError(t, m.PutStakingGlobals(&staking.Globals{
		StakedMintRatio:   big.NewInt(1),
		StakedAmountLimit: rad(1000),
		TotalLocked:       wad(100),
		TotalShare:        rad(100),
		RewardTokens:      []string{"RWD"},
		Rewards: map[string]*staking.RewardToken{
			"RWD": {Symbol: "RWD", TotalRewardAmount: wad(20), AccPerShare: big.NewInt(42)},
		},
	}))
	require.NoError(t, m.PutStakingPosition(&staking.Position{
		Owner:             alice,
		StakedShare:       rad(100),
		LockedStakeable:   wad(100),
		UnlockedStakeable: wad(3),
		RewardDebt:        map[string]*big.Int{"RWD": big.NewInt(11)},
		Withdrawable:      map[string]*big.Int{"RWD": wad(2)},
	}))
	require.NoError(t, m.PutTransfer(&bridge.Transfer{
		ID:          "t-1",
		Direction:   bridge.DirectionOutbound,
		ChainID:     7,
		User:        alice,
		Recipient:   makeAddress(0x20),
		Amount:      wad(9),
		Fee:         big.NewInt(0),
		PayloadHash: [32]byte{0xab},
		CreatedAt:   1_700_000_100,
	}))
	require.NoError(t, m.PutTrustedRemote(7, makeAddress(0x30)))
	// Burn a couple of ids so the sequence survives the round trip.
	_, err := m.NextAuctionID()
	require.NoError(t, err)
	_, err = m.NextAuctionID()
	require.NoError(t, err)
	return m
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := populatedManager(t)
	store := NewStore(NewMemDB())

	require.NoError(t, store.Save(m.Snapshot()))
	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	restored := state.NewManager()
	restored.Restore(loaded)

	alice := makeAddress(0x10)
	v, err := restored.Vault(alice)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, 0, v.Locked["BAR"].Cmp(wad(800)))
	require.Equal(t, []string{"FOO", "BAR"}, v.LockedList)
	require.Equal(t, map[string]int{"FOO": 0, "BAR": 1}, v.LockedIndex)
	require.Equal(t, 0, v.StableBalance.Cmp(rad(-7)))
	require.True(t, v.Agents[makeAddress(0x01)])

	g, err := restored.Globals()
	require.NoError(t, err)
	require.Equal(t, int64(1_700_000_000), g.LastAccrual)
	require.Equal(t, 0, g.TotalStable.Cmp(rad(-3)))
	require.True(t, g.Admins[makeAddress(0x01)])

	ct, err := restored.CollateralType("FOO")
	require.NoError(t, err)
	require.True(t, ct.Leveraged)
	require.Equal(t, 0, ct.LockedAmount.Cmp(wad(50)))

	a, err := restored.Auction(3)
	require.NoError(t, err)
	require.Equal(t, 0, a.Lot["FOO"].Cmp(wad(40)))
	require.Equal(t, int64(1_700_010_800), a.BidExpiry)

	sg, err := restored.StakingGlobals()
	require.NoError(t, err)
	require.Equal(t, []string{"RWD"}, sg.RewardTokens)
	require.Equal(t, 0, sg.Rewards["RWD"].AccPerShare.Cmp(big.NewInt(42)))

	p, err := restored.StakingPosition(alice)
	require.NoError(t, err)
	require.Equal(t, 0, p.Withdrawable["RWD"].Cmp(wad(2)))

	tr, err := restored.Transfer("t-1")
	require.NoError(t, err)
	require.Equal(t, bridge.DirectionOutbound, tr.Direction)
	require.Equal(t, [32]byte{0xab}, tr.PayloadHash)

	remote, ok, err := restored.TrustedRemote(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, makeAddress(0x30), remote)

	// The id sequence continues where the saved manager left off.
	id, err := restored.NextAuctionID()
	require.NoError(t, err)
	require.Equal(t, uint64(3), id)
}

func TestLoadFreshDatabase(t *testing.T) {
	store := NewStore(NewMemDB())
	snap, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestLoadRejectsCorruptManifest(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("snapshot/manifest"), []byte{0xff, 0x01}))
	store := NewStore(db)
	_, err := store.Load()
	require.Error(t, err)
}

func TestMemDBMissingKey(t *testing.T) {
	db := NewMemDB()
	_, err := db.Get([]byte("nope"))
	require.ErrorIs(t, err, ErrNotFound)
}
