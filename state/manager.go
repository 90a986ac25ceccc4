// Package state provides the in-memory state manager backing every ledger
// engine. Reads hand out deep copies and writes store deep copies, so a
// failed engine operation can never leave a half-mutated record behind, and
// snapshots taken for persistence do not race in-flight operations.
package state

import (
	"math/big"
	"sort"
	"sync"

	"lmcv/native/auction"
	"lmcv/native/bridge"
	"lmcv/native/staking"
	"lmcv/native/vault"
)

// Manager holds the full protocol state: vault globals, collateral book,
// vaults, deficits, auctions, staking positions and bridge transfers. It
// satisfies the state interfaces of all engines. The mutex guards the maps
// themselves; operation-level atomicity is the node's concern.
type Manager struct {
	mu sync.RWMutex

	globals        *vault.Globals
	collateral     map[string]*vault.CollateralType
	vaults         map[[20]byte]*vault.Vault
	deficits       map[[20]byte]*big.Int
	auctions       map[uint64]*auction.Auction
	nextAuctionID  uint64
	stakingGlobals *staking.Globals
	positions      map[[20]byte]*staking.Position
	transfers      map[string]*bridge.Transfer
	remotes        map[uint32][20]byte
}

// NewManager constructs an empty state manager.
func NewManager() *Manager {
	return &Manager{
		collateral: make(map[string]*vault.CollateralType),
		vaults:     make(map[[20]byte]*vault.Vault),
		deficits:   make(map[[20]byte]*big.Int),
		auctions:   make(map[uint64]*auction.Auction),
		positions:  make(map[[20]byte]*staking.Position),
		transfers:  make(map[string]*bridge.Transfer),
		remotes:    make(map[uint32][20]byte),
	}
}

// Globals returns a copy of the vault globals, or nil before bootstrap.
func (m *Manager) Globals() (*vault.Globals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globals.Clone(), nil
}

// PutGlobals stores the vault globals.
func (m *Manager) PutGlobals(g *vault.Globals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globals = g.Clone()
	return nil
}

// CollateralType returns a copy of a registered collateral type, or nil.
func (m *Manager) CollateralType(symbol string) (*vault.CollateralType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collateral[symbol].Clone(), nil
}

// PutCollateralType stores a collateral type keyed by its symbol.
func (m *Manager) PutCollateralType(ct *vault.CollateralType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collateral[ct.Symbol] = ct.Clone()
	return nil
}

// Vault returns a copy of a stored vault, or nil for an untouched address.
func (m *Manager) Vault(owner [20]byte) (*vault.Vault, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vaults[owner].Clone(), nil
}

// PutVault stores a vault keyed by its owner.
func (m *Manager) PutVault(v *vault.Vault) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vaults[v.Owner] = v.Clone()
	return nil
}

// Deficit returns the recorded protocol deficit for an address, or nil.
func (m *Manager) Deficit(addr [20]byte) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.deficits[addr]; ok {
		return new(big.Int).Set(d), nil
	}
	return nil, nil
}

// PutDeficit stores the protocol deficit for an address.
func (m *Manager) PutDeficit(addr [20]byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deficits[addr] = new(big.Int).Set(amount)
	return nil
}

// Auction returns a copy of an open auction, or nil once settled.
func (m *Manager) Auction(id uint64) (*auction.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auctions[id].Clone(), nil
}

// PutAuction stores an auction keyed by its id.
func (m *Manager) PutAuction(a *auction.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[a.ID] = a.Clone()
	return nil
}

// DeleteAuction removes a settled auction record.
func (m *Manager) DeleteAuction(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.auctions, id)
	return nil
}

// NextAuctionID returns the next id in the incrementing sequence.
func (m *Manager) NextAuctionID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAuctionID++
	return m.nextAuctionID, nil
}

// StakingGlobals returns a copy of the staking configuration and totals.
func (m *Manager) StakingGlobals() (*staking.Globals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stakingGlobals.Clone(), nil
}

// PutStakingGlobals stores the staking globals.
func (m *Manager) PutStakingGlobals(g *staking.Globals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stakingGlobals = g.Clone()
	return nil
}

// StakingPosition returns a copy of a user's staking position, or nil.
func (m *Manager) StakingPosition(owner [20]byte) (*staking.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[owner].Clone(), nil
}

// PutStakingPosition stores a staking position keyed by its owner.
func (m *Manager) PutStakingPosition(p *staking.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.Owner] = p.Clone()
	return nil
}

// Transfer returns a copy of a recorded teleport transfer, or nil.
func (m *Manager) Transfer(id string) (*bridge.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transfers[id].Clone(), nil
}

// PutTransfer stores a teleport transfer keyed by its id.
func (m *Manager) PutTransfer(t *bridge.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[t.ID] = t.Clone()
	return nil
}

// TrustedRemote returns the registered remote pipe address for a chain.
func (m *Manager) TrustedRemote(chainID uint32) ([20]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	remote, ok := m.remotes[chainID]
	return remote, ok, nil
}

// PutTrustedRemote registers the remote pipe address for a chain.
func (m *Manager) PutTrustedRemote(chainID uint32, remote [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remotes[chainID] = remote
	return nil
}

// Snapshot captures a deep copy of the full state for persistence.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := &Snapshot{
		Globals:        m.globals.Clone(),
		StakingGlobals: m.stakingGlobals.Clone(),
		NextAuctionID:  m.nextAuctionID,
	}
	for _, ct := range m.collateral {
		snap.Collateral = append(snap.Collateral, ct.Clone())
	}
	sort.Slice(snap.Collateral, func(i, j int) bool {
		return snap.Collateral[i].Symbol < snap.Collateral[j].Symbol
	})
	for _, v := range m.vaults {
		snap.Vaults = append(snap.Vaults, v.Clone())
	}
	sort.Slice(snap.Vaults, func(i, j int) bool {
		return lessAddress(snap.Vaults[i].Owner, snap.Vaults[j].Owner)
	})
	for addr, d := range m.deficits {
		snap.Deficits = append(snap.Deficits, DeficitEntry{Address: addr, Amount: new(big.Int).Set(d)})
	}
	sort.Slice(snap.Deficits, func(i, j int) bool {
		return lessAddress(snap.Deficits[i].Address, snap.Deficits[j].Address)
	})
	for _, a := range m.auctions {
		snap.Auctions = append(snap.Auctions, a.Clone())
	}
	sort.Slice(snap.Auctions, func(i, j int) bool {
		return snap.Auctions[i].ID < snap.Auctions[j].ID
	})
	for _, p := range m.positions {
		snap.Positions = append(snap.Positions, p.Clone())
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return lessAddress(snap.Positions[i].Owner, snap.Positions[j].Owner)
	})
	for _, t := range m.transfers {
		snap.Transfers = append(snap.Transfers, t.Clone())
	}
	sort.Slice(snap.Transfers, func(i, j int) bool {
		return snap.Transfers[i].ID < snap.Transfers[j].ID
	})
	for chainID, remote := range m.remotes {
		snap.Remotes = append(snap.Remotes, RemoteEntry{ChainID: chainID, Remote: remote})
	}
	sort.Slice(snap.Remotes, func(i, j int) bool {
		return snap.Remotes[i].ChainID < snap.Remotes[j].ChainID
	})
	return snap
}

// Restore replaces the full state with a previously captured snapshot.
func (m *Manager) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globals = snap.Globals.Clone()
	m.stakingGlobals = snap.StakingGlobals.Clone()
	m.nextAuctionID = snap.NextAuctionID
	m.collateral = make(map[string]*vault.CollateralType, len(snap.Collateral))
	for _, ct := range snap.Collateral {
		m.collateral[ct.Symbol] = ct.Clone()
	}
	m.vaults = make(map[[20]byte]*vault.Vault, len(snap.Vaults))
	for _, v := range snap.Vaults {
		m.vaults[v.Owner] = v.Clone()
	}
	m.deficits = make(map[[20]byte]*big.Int, len(snap.Deficits))
	for _, entry := range snap.Deficits {
		m.deficits[entry.Address] = new(big.Int).Set(entry.Amount)
	}
	m.auctions = make(map[uint64]*auction.Auction, len(snap.Auctions))
	for _, a := range snap.Auctions {
		m.auctions[a.ID] = a.Clone()
	}
	m.positions = make(map[[20]byte]*staking.Position, len(snap.Positions))
	for _, p := range snap.Positions {
		m.positions[p.Owner] = p.Clone()
	}
	m.transfers = make(map[string]*bridge.Transfer, len(snap.Transfers))
	for _, t := range snap.Transfers {
		m.transfers[t.ID] = t.Clone()
	}
	m.remotes = make(map[uint32][20]byte, len(snap.Remotes))
	for _, entry := range snap.Remotes {
		m.remotes[entry.ChainID] = entry.Remote
	}
}

// Snapshot is a stable, sorted view of the full state.
type Snapshot struct {
	Globals        *vault.Globals
	Collateral     []*vault.CollateralType
	Vaults         []*vault.Vault
	Deficits       []DeficitEntry
	Auctions       []*auction.Auction
	NextAuctionID  uint64
	StakingGlobals *staking.Globals
	Positions      []*staking.Position
	Transfers      []*bridge.Transfer
	Remotes        []RemoteEntry
}

// DeficitEntry pairs an address with its recorded protocol deficit.
type DeficitEntry struct {
	Address [20]byte
	Amount  *big.Int
}

// RemoteEntry pairs a chain id with its trusted remote pipe address.
type RemoteEntry struct {
	ChainID uint32
	Remote  [20]byte
}

func lessAddress(a, b [20]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
