package storage

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"lmcv/native/auction"
	"lmcv/native/bridge"
	"lmcv/native/staking"
	"lmcv/native/vault"
	"lmcv/state"
)

// Key layout. Each record kind lives under its own prefix; the manifest names
// every key that belongs to the current snapshot.
const (
	keyManifest       = "snapshot/manifest"
	keyGlobals        = "globals"
	keyStakingGlobals = "stake/globals"
	prefixVault       = "vault/"
	prefixCollateral  = "coll/"
	prefixAuction     = "auction/"
	prefixPosition    = "stake/"
	prefixTransfer    = "transfer/"
)

const snapshotVersion = 1

var errBadSnapshot = errors.New("storage: corrupt snapshot")

// Store persists full state snapshots as RLP records in a key-value store.
// RLP cannot carry maps or signed integers, so every state type is flattened
// into a record struct with sorted entry lists and sign-split balances.
type Store struct {
	db Database
}

// NewStore wraps a database in a snapshot store.
func NewStore(db Database) *Store {
	return &Store{db: db}
}

// signedInt carries a possibly negative big.Int through RLP.
type signedInt struct {
	Neg bool
	Abs *big.Int
}

func encSigned(v *big.Int) signedInt {
	if v == nil {
		return signedInt{Abs: big.NewInt(0)}
	}
	return signedInt{Neg: v.Sign() < 0, Abs: new(big.Int).Abs(v)}
}

func decSigned(v signedInt) *big.Int {
	out := new(big.Int)
	if v.Abs != nil {
		out.Set(v.Abs)
	}
	if v.Neg {
		out.Neg(out)
	}
	return out
}

// amountEntry is one symbol-keyed balance.
type amountEntry struct {
	Symbol string
	Amount *big.Int
}

func encAmounts(src map[string]*big.Int) []amountEntry {
	out := make([]amountEntry, 0, len(src))
	for symbol, amount := range src {
		if amount == nil {
			amount = big.NewInt(0)
		}
		out = append(out, amountEntry{Symbol: symbol, Amount: new(big.Int).Set(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func decAmounts(src []amountEntry) map[string]*big.Int {
	out := make(map[string]*big.Int, len(src))
	for _, entry := range src {
		amount := entry.Amount
		if amount == nil {
			amount = big.NewInt(0)
		}
		out[entry.Symbol] = new(big.Int).Set(amount)
	}
	return out
}

func encAddressSet(src map[[20]byte]bool) [][20]byte {
	out := make([][20]byte, 0, len(src))
	for addr, ok := range src {
		if ok {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

func decAddressSet(src [][20]byte) map[[20]byte]bool {
	out := make(map[[20]byte]bool, len(src))
	for _, addr := range src {
		out[addr] = true
	}
	return out
}

type vaultRecord struct {
	Owner          [20]byte
	Unlocked       []amountEntry
	Locked         []amountEntry
	LockedList     []string
	NormalizedDebt *big.Int
	StableBalance  signedInt
	Agents         [][20]byte
}

func encVault(v *vault.Vault) *vaultRecord {
	return &vaultRecord{
		Owner:          v.Owner,
		Unlocked:       encAmounts(v.Unlocked),
		Locked:         encAmounts(v.Locked),
		LockedList:     append([]string(nil), v.LockedList...),
		NormalizedDebt: nonNil(v.NormalizedDebt),
		StableBalance:  encSigned(v.StableBalance),
		Agents:         encAddressSet(v.Agents),
	}
}

func decVault(r *vaultRecord) *vault.Vault {
	v := &vault.Vault{
		Owner:          r.Owner,
		Unlocked:       decAmounts(r.Unlocked),
		Locked:         decAmounts(r.Locked),
		LockedList:     append([]string(nil), r.LockedList...),
		LockedIndex:    make(map[string]int, len(r.LockedList)),
		NormalizedDebt: nonNil(r.NormalizedDebt),
		StableBalance:  decSigned(r.StableBalance),
		Agents:         decAddressSet(r.Agents),
	}
	for i, symbol := range r.LockedList {
		v.LockedIndex[symbol] = i
	}
	return v
}

type collateralRecord struct {
	Symbol            string
	SpotPrice         *big.Int
	LockedAmount      *big.Int
	LockedAmountLimit *big.Int
	DustLevel         *big.Int
	CreditRatio       *big.Int
	Leveraged         bool
}

func encCollateral(ct *vault.CollateralType) *collateralRecord {
	return &collateralRecord{
		Symbol:            ct.Symbol,
		SpotPrice:         nonNil(ct.SpotPrice),
		LockedAmount:      nonNil(ct.LockedAmount),
		LockedAmountLimit: nonNil(ct.LockedAmountLimit),
		DustLevel:         nonNil(ct.DustLevel),
		CreditRatio:       nonNil(ct.CreditRatio),
		Leveraged:         ct.Leveraged,
	}
}

func decCollateral(r *collateralRecord) *vault.CollateralType {
	return &vault.CollateralType{
		Symbol:            r.Symbol,
		SpotPrice:         nonNil(r.SpotPrice),
		LockedAmount:      nonNil(r.LockedAmount),
		LockedAmountLimit: nonNil(r.LockedAmountLimit),
		DustLevel:         nonNil(r.DustLevel),
		CreditRatio:       nonNil(r.CreditRatio),
		Leveraged:         r.Leveraged,
	}
}

type globalsRecord struct {
	AccumulatedRate     *big.Int
	RatePerSecond       *big.Int
	LastAccrual         uint64
	TotalNormalizedDebt *big.Int
	TotalStable         signedInt
	ProtocolDebtCeiling *big.Int
	TotalDeficit        *big.Int
	MintFee             *big.Int
	Treasury            [20]byte
	PSM                 [20]byte
	ArchAdmin           [20]byte
	Admins              [][20]byte
}

func encGlobals(g *vault.Globals) *globalsRecord {
	return &globalsRecord{
		AccumulatedRate:     nonNil(g.AccumulatedRate),
		RatePerSecond:       nonNil(g.RatePerSecond),
		LastAccrual:         uint64(g.LastAccrual),
		TotalNormalizedDebt: nonNil(g.TotalNormalizedDebt),
		TotalStable:         encSigned(g.TotalStable),
		ProtocolDebtCeiling: nonNil(g.ProtocolDebtCeiling),
		TotalDeficit:        nonNil(g.TotalDeficit),
		MintFee:             nonNil(g.MintFee),
		Treasury:            g.Treasury,
		PSM:                 g.PSM,
		ArchAdmin:           g.ArchAdmin,
		Admins:              encAddressSet(g.Admins),
	}
}

func decGlobals(r *globalsRecord) *vault.Globals {
	return &vault.Globals{
		AccumulatedRate:     nonNil(r.AccumulatedRate),
		RatePerSecond:       nonNil(r.RatePerSecond),
		LastAccrual:         int64(r.LastAccrual),
		TotalNormalizedDebt: nonNil(r.TotalNormalizedDebt),
		TotalStable:         decSigned(r.TotalStable),
		ProtocolDebtCeiling: nonNil(r.ProtocolDebtCeiling),
		TotalDeficit:        nonNil(r.TotalDeficit),
		MintFee:             nonNil(r.MintFee),
		Treasury:            r.Treasury,
		PSM:                 r.PSM,
		ArchAdmin:           r.ArchAdmin,
		Admins:              decAddressSet(r.Admins),
	}
}

type auctionRecord struct {
	ID            uint64
	LotSymbols    []string
	OriginalLot   []amountEntry
	Lot           []amountEntry
	AskingAmount  *big.Int
	DebtBid       *big.Int
	CurrentWinner [20]byte
	Liquidated    [20]byte
	Treasury      [20]byte
	AuctionExpiry uint64
	BidExpiry     uint64
	LotFraction   *big.Int
}

func encAuction(a *auction.Auction) *auctionRecord {
	return &auctionRecord{
		ID:            a.ID,
		LotSymbols:    append([]string(nil), a.LotSymbols...),
		OriginalLot:   encAmounts(a.OriginalLot),
		Lot:           encAmounts(a.Lot),
		AskingAmount:  nonNil(a.AskingAmount),
		DebtBid:       nonNil(a.DebtBid),
		CurrentWinner: a.CurrentWinner,
		Liquidated:    a.Liquidated,
		Treasury:      a.Treasury,
		AuctionExpiry: uint64(a.AuctionExpiry),
		BidExpiry:     uint64(a.BidExpiry),
		LotFraction:   nonNil(a.LotFraction),
	}
}

func decAuction(r *auctionRecord) *auction.Auction {
	return &auction.Auction{
		ID:            r.ID,
		LotSymbols:    append([]string(nil), r.LotSymbols...),
		OriginalLot:   decAmounts(r.OriginalLot),
		Lot:           decAmounts(r.Lot),
		AskingAmount:  nonNil(r.AskingAmount),
		DebtBid:       nonNil(r.DebtBid),
		CurrentWinner: r.CurrentWinner,
		Liquidated:    r.Liquidated,
		Treasury:      r.Treasury,
		AuctionExpiry: int64(r.AuctionExpiry),
		BidExpiry:     int64(r.BidExpiry),
		LotFraction:   nonNil(r.LotFraction),
	}
}

type rewardRecord struct {
	Symbol            string
	TotalRewardAmount *big.Int
	AccPerShare       *big.Int
}

type stakingGlobalsRecord struct {
	StakedMintRatio   *big.Int
	StakedAmountLimit *big.Int
	TotalLocked       *big.Int
	TotalShare        *big.Int
	RewardTokens      []string
	Rewards           []rewardRecord
}

func encStakingGlobals(g *staking.Globals) *stakingGlobalsRecord {
	record := &stakingGlobalsRecord{
		StakedMintRatio:   nonNil(g.StakedMintRatio),
		StakedAmountLimit: nonNil(g.StakedAmountLimit),
		TotalLocked:       nonNil(g.TotalLocked),
		TotalShare:        nonNil(g.TotalShare),
		RewardTokens:      append([]string(nil), g.RewardTokens...),
	}
	for _, symbol := range record.RewardTokens {
		token := g.Rewards[symbol]
		if token == nil {
			token = &staking.RewardToken{Symbol: symbol}
		}
		record.Rewards = append(record.Rewards, rewardRecord{
			Symbol:            symbol,
			TotalRewardAmount: nonNil(token.TotalRewardAmount),
			AccPerShare:       nonNil(token.AccPerShare),
		})
	}
	return record
}

func decStakingGlobals(r *stakingGlobalsRecord) *staking.Globals {
	g := &staking.Globals{
		StakedMintRatio:   nonNil(r.StakedMintRatio),
		StakedAmountLimit: nonNil(r.StakedAmountLimit),
		TotalLocked:       nonNil(r.TotalLocked),
		TotalShare:        nonNil(r.TotalShare),
		RewardTokens:      append([]string(nil), r.RewardTokens...),
		Rewards:           make(map[string]*staking.RewardToken, len(r.Rewards)),
	}
	for _, token := range r.Rewards {
		g.Rewards[token.Symbol] = &staking.RewardToken{
			Symbol:            token.Symbol,
			TotalRewardAmount: nonNil(token.TotalRewardAmount),
			AccPerShare:       nonNil(token.AccPerShare),
		}
	}
	return g
}

type positionRecord struct {
	Owner             [20]byte
	StakedShare       *big.Int
	LockedStakeable   *big.Int
	UnlockedStakeable *big.Int
	RewardDebt        []amountEntry
	Withdrawable      []amountEntry
}

func encPosition(p *staking.Position) *positionRecord {
	return &positionRecord{
		Owner:             p.Owner,
		StakedShare:       nonNil(p.StakedShare),
		LockedStakeable:   nonNil(p.LockedStakeable),
		UnlockedStakeable: nonNil(p.UnlockedStakeable),
		RewardDebt:        encAmounts(p.RewardDebt),
		Withdrawable:      encAmounts(p.Withdrawable),
	}
}

func decPosition(r *positionRecord) *staking.Position {
	return &staking.Position{
		Owner:             r.Owner,
		StakedShare:       nonNil(r.StakedShare),
		LockedStakeable:   nonNil(r.LockedStakeable),
		UnlockedStakeable: nonNil(r.UnlockedStakeable),
		RewardDebt:        decAmounts(r.RewardDebt),
		Withdrawable:      decAmounts(r.Withdrawable),
	}
}

type transferRecord struct {
	ID          string
	Direction   string
	ChainID     uint32
	User        [20]byte
	Recipient   [20]byte
	Amount      *big.Int
	Fee         *big.Int
	PayloadHash [32]byte
	CreatedAt   uint64
}

func encTransfer(t *bridge.Transfer) *transferRecord {
	return &transferRecord{
		ID:          t.ID,
		Direction:   t.Direction,
		ChainID:     t.ChainID,
		User:        t.User,
		Recipient:   t.Recipient,
		Amount:      nonNil(t.Amount),
		Fee:         nonNil(t.Fee),
		PayloadHash: t.PayloadHash,
		CreatedAt:   uint64(t.CreatedAt),
	}
}

func decTransfer(r *transferRecord) *bridge.Transfer {
	return &bridge.Transfer{
		ID:          r.ID,
		Direction:   r.Direction,
		ChainID:     r.ChainID,
		User:        r.User,
		Recipient:   r.Recipient,
		Amount:      nonNil(r.Amount),
		Fee:         nonNil(r.Fee),
		PayloadHash: r.PayloadHash,
		CreatedAt:   int64(r.CreatedAt),
	}
}

type deficitRecord struct {
	Address [20]byte
	Amount  *big.Int
}

type remoteRecord struct {
	ChainID uint32
	Remote  [20]byte
}

// manifest names every record belonging to the snapshot plus the scalar state
// that has no record of its own.
type manifest struct {
	Version           uint64
	NextAuctionID     uint64
	HasGlobals        bool
	HasStakingGlobals bool
	VaultOwners       [][20]byte
	CollateralSymbols []string
	AuctionIDs        []uint64
	PositionOwners    [][20]byte
	TransferIDs       []string
	Deficits          []deficitRecord
	Remotes           []remoteRecord
}

// Save writes a full snapshot. Records are written before the manifest, so a
// crash mid-save leaves the previous manifest intact and the half-written
// records unreachable.
func (s *Store) Save(snap *state.Snapshot) error {
	m := &manifest{
		Version:           snapshotVersion,
		NextAuctionID:     snap.NextAuctionID,
		HasGlobals:        snap.Globals != nil,
		HasStakingGlobals: snap.StakingGlobals != nil,
	}

	if snap.Globals != nil {
		if err := s.putRecord(keyGlobals, encGlobals(snap.Globals)); err != nil {
			return err
		}
	}
	if snap.StakingGlobals != nil {
		if err := s.putRecord(keyStakingGlobals, encStakingGlobals(snap.StakingGlobals)); err != nil {
			return err
		}
	}
	for _, v := range snap.Vaults {
		if err := s.putRecord(vaultKey(v.Owner), encVault(v)); err != nil {
			return err
		}
		m.VaultOwners = append(m.VaultOwners, v.Owner)
	}
	for _, ct := range snap.Collateral {
		if err := s.putRecord(prefixCollateral+ct.Symbol, encCollateral(ct)); err != nil {
			return err
		}
		m.CollateralSymbols = append(m.CollateralSymbols, ct.Symbol)
	}
	for _, a := range snap.Auctions {
		if err := s.putRecord(auctionKey(a.ID), encAuction(a)); err != nil {
			return err
		}
		m.AuctionIDs = append(m.AuctionIDs, a.ID)
	}
	for _, p := range snap.Positions {
		if err := s.putRecord(positionKey(p.Owner), encPosition(p)); err != nil {
			return err
		}
		m.PositionOwners = append(m.PositionOwners, p.Owner)
	}
	for _, t := range snap.Transfers {
		if err := s.putRecord(prefixTransfer+t.ID, encTransfer(t)); err != nil {
			return err
		}
		m.TransferIDs = append(m.TransferIDs, t.ID)
	}
	for _, entry := range snap.Deficits {
		m.Deficits = append(m.Deficits, deficitRecord{Address: entry.Address, Amount: nonNil(entry.Amount)})
	}
	for _, entry := range snap.Remotes {
		m.Remotes = append(m.Remotes, remoteRecord{ChainID: entry.ChainID, Remote: entry.Remote})
	}
	return s.putRecord(keyManifest, m)
}

// Load reads the snapshot named by the stored manifest. A database without a
// manifest yields (nil, nil): a fresh ledger.
func (s *Store) Load() (*state.Snapshot, error) {
	var m manifest
	raw, err := s.db.Get([]byte(keyManifest))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := rlp.DecodeBytes(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", errBadSnapshot, err)
	}
	if m.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errBadSnapshot, m.Version)
	}

	snap := &state.Snapshot{NextAuctionID: m.NextAuctionID}
	if m.HasGlobals {
		var record globalsRecord
		if err := s.getRecord(keyGlobals, &record); err != nil {
			return nil, err
		}
		snap.Globals = decGlobals(&record)
	}
	if m.HasStakingGlobals {
		var record stakingGlobalsRecord
		if err := s.getRecord(keyStakingGlobals, &record); err != nil {
			return nil, err
		}
		snap.StakingGlobals = decStakingGlobals(&record)
	}
	for _, owner := range m.VaultOwners {
		var record vaultRecord
		if err := s.getRecord(vaultKey(owner), &record); err != nil {
			return nil, err
		}
		snap.Vaults = append(snap.Vaults, decVault(&record))
	}
	for _, symbol := range m.CollateralSymbols {
		var record collateralRecord
		if err := s.getRecord(prefixCollateral+symbol, &record); err != nil {
			return nil, err
		}
		snap.Collateral = append(snap.Collateral, decCollateral(&record))
	}
	for _, id := range m.AuctionIDs {
		var record auctionRecord
		if err := s.getRecord(auctionKey(id), &record); err != nil {
			return nil, err
		}
		snap.Auctions = append(snap.Auctions, decAuction(&record))
	}
	for _, owner := range m.PositionOwners {
		var record positionRecord
		if err := s.getRecord(positionKey(owner), &record); err != nil {
			return nil, err
		}
		snap.Positions = append(snap.Positions, decPosition(&record))
	}
	for _, id := range m.TransferIDs {
		var record transferRecord
		if err := s.getRecord(prefixTransfer+id, &record); err != nil {
			return nil, err
		}
		snap.Transfers = append(snap.Transfers, decTransfer(&record))
	}
	for _, record := range m.Deficits {
		snap.Deficits = append(snap.Deficits, state.DeficitEntry{Address: record.Address, Amount: nonNil(record.Amount)})
	}
	for _, record := range m.Remotes {
		snap.Remotes = append(snap.Remotes, state.RemoteEntry{ChainID: record.ChainID, Remote: record.Remote})
	}
	return snap, nil
}

func (s *Store) putRecord(key string, record interface{}) error {
	raw, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), raw)
}

func (s *Store) getRecord(key string, record interface{}) error {
	raw, err := s.db.Get([]byte(key))
	if err != nil {
		return fmt.Errorf("%w: missing record %q", errBadSnapshot, key)
	}
	if err := rlp.DecodeBytes(raw, record); err != nil {
		return fmt.Errorf("%w: record %q: %v", errBadSnapshot, key, err)
	}
	return nil
}

func vaultKey(owner [20]byte) string {
	return prefixVault + addressHex(owner)
}

func positionKey(owner [20]byte) string {
	return prefixPosition + addressHex(owner)
}

func auctionKey(id uint64) string {
	return fmt.Sprintf("%s%d", prefixAuction, id)
}

func addressHex(addr [20]byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, 40)
	for _, b := range addr {
		out = append(out, digits[b>>4], digits[b&0x0f])
	}
	return string(out)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
