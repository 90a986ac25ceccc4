// Package core assembles the protocol engines into one node. Every public
// operation runs under a single mutex, so each ledger action is a critical
// section over the whole state and engines never observe each other's
// intermediate writes.
package core

import (
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"lmcv/core/events"
	"lmcv/native/auction"
	"lmcv/native/bridge"
	"lmcv/native/liquidation"
	"lmcv/native/oracle"
	"lmcv/native/psm"
	"lmcv/native/staking"
	"lmcv/native/vault"
	"lmcv/state"
)

// Module names with protocol-owned vault addresses.
const (
	ModuleAuction       = "auction"
	ModuleAuctionEscrow = "auction-escrow"
	ModuleLiquidation   = "liquidation"
	ModulePSM           = "psm"
	ModuleBridge        = "bridge"
	ModuleBridgeFees    = "bridge-fees"
)

// ModuleAddress derives the deterministic vault address a protocol module
// operates as. Module addresses have no key material behind them; they exist
// only as ledger identities.
func ModuleAddress(name string) [20]byte {
	var addr [20]byte
	copy(addr[:], crypto.Keccak256([]byte("lmcv/module/"+name))[12:])
	return addr
}

// Config carries the identities a node is assembled around.
type Config struct {
	ChainID  uint32
	Admin    [20]byte
	Treasury [20]byte
}

// Node owns the state manager and all engines.
type Node struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	state       *state.Manager
	vault       *vault.Engine
	liquidation *liquidation.Engine
	auctions    *auction.Engine
	staking     *staking.Engine
	pipe        *bridge.Pipe
	psm         *psm.Engine
	oracles     map[string]*oracle.OSM
}

// NewNode wires every engine against the shared state manager. Events from
// all engines flow through the given emitter; pass nil to discard them.
func NewNode(cfg Config, manager *state.Manager, emitter events.Emitter, logger *slog.Logger) *Node {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &Node{
		cfg:     cfg,
		log:     logger,
		state:   manager,
		oracles: make(map[string]*oracle.OSM),
	}

	n.vault = vault.NewEngine()
	n.vault.SetState(manager)
	n.vault.SetEmitter(emitter)

	n.auctions = auction.NewEngine()
	n.auctions.SetState(manager)
	n.auctions.SetLedger(n.vault)
	n.auctions.SetEmitter(emitter)
	n.auctions.SetModuleAddress(ModuleAddress(ModuleAuction))

	n.liquidation = liquidation.NewEngine()
	n.liquidation.SetLedger(n.vault)
	n.liquidation.SetAuctionHouse(n.auctions)
	n.liquidation.SetEmitter(emitter)
	n.liquidation.SetModuleAddress(ModuleAddress(ModuleLiquidation))
	n.liquidation.SetEscrowAddress(ModuleAddress(ModuleAuctionEscrow))

	n.staking = staking.NewEngine()
	n.staking.SetState(manager)
	n.staking.SetAuthority(n.vault)
	n.staking.SetEmitter(emitter)

	n.pipe = bridge.NewPipe(cfg.ChainID)
	n.pipe.SetState(manager)
	n.pipe.SetLedger(n.vault)
	n.pipe.SetEmitter(emitter)
	n.pipe.SetModuleAddress(ModuleAddress(ModuleBridge))
	n.pipe.SetFeeCollector(ModuleAddress(ModuleBridgeFees))

	n.psm = psm.NewEngine()
	n.psm.SetLedger(n.vault)
	n.psm.SetModuleAddress(ModuleAddress(ModulePSM))

	return n
}

// Bootstrap initializes a fresh ledger: the admin becomes arch-admin, the
// treasury is set and every protocol module address is rely'd. The treasury
// also approves the auction module so losing bids can be refunded from the
// standing balance. Safe to call only once per state.
func (n *Node) Bootstrap() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	admin := n.cfg.Admin
	if err := n.vault.Bootstrap(admin); err != nil {
		return err
	}
	if err := n.vault.SetTreasury(admin, n.cfg.Treasury); err != nil {
		return err
	}
	for _, name := range []string{ModuleAuction, ModuleLiquidation, ModulePSM, ModuleBridge} {
		if err := n.vault.Administrate(admin, ModuleAddress(name), true); err != nil {
			return err
		}
	}
	if err := n.vault.SetPSMAddress(admin, ModuleAddress(ModulePSM)); err != nil {
		return err
	}
	if err := n.vault.Approve(n.cfg.Treasury, ModuleAddress(ModuleAuction)); err != nil {
		return err
	}
	n.log.Info("ledger bootstrapped", "admin", hex(admin), "treasury", hex(n.cfg.Treasury))
	return nil
}

// Loan locks collateral and draws stable token against it.
func (n *Node) Loan(caller, user [20]byte, symbols []string, deltaCollateral []*big.Int, deltaDebt *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Loan(caller, user, symbols, deltaCollateral, deltaDebt)
}

// Repay burns stable token and unlocks collateral.
func (n *Node) Repay(caller, user [20]byte, symbols []string, deltaCollateral []*big.Int, deltaDebt *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Repay(caller, user, symbols, deltaCollateral, deltaDebt)
}

// PushCollateral credits a user's unlocked balance. Admin only.
func (n *Node) PushCollateral(caller, user [20]byte, symbol string, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.PushCollateral(caller, user, symbol, amount)
}

// PullCollateral debits a user's unlocked balance. Admin only.
func (n *Node) PullCollateral(caller, user [20]byte, symbol string, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.PullCollateral(caller, user, symbol, amount)
}

// MoveCollateral transfers unlocked collateral between vaults.
func (n *Node) MoveCollateral(caller, from, to [20]byte, symbol string, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.MoveCollateral(caller, from, to, symbol, amount)
}

// MoveStable transfers stable token between vaults.
func (n *Node) MoveStable(caller, from, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.MoveStable(caller, from, to, amount)
}

// Approve lets agent move the user's balances.
func (n *Node) Approve(user, agent [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Approve(user, agent)
}

// Disapprove revokes an agent's consent.
func (n *Node) Disapprove(user, agent [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Disapprove(user, agent)
}

// Mint creates unbacked stable token on a user. Admin only.
func (n *Node) Mint(caller, user [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Mint(caller, user, amount)
}

// Burn destroys stable token held by a user. Admin only.
func (n *Node) Burn(caller, user [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Burn(caller, user, amount)
}

// Inflate mints against a recorded deficit. Admin only.
func (n *Node) Inflate(caller, debtor, recipient [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Inflate(caller, debtor, recipient, amount)
}

// Deflate burns the caller's stable against their recorded deficit.
func (n *Node) Deflate(caller [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Deflate(caller, amount)
}

// Administrate grants or revokes admin rights. Admin only.
func (n *Node) Administrate(caller, target [20]byte, enabled bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Administrate(caller, target, enabled)
}

// SetArchAdmin hands the arch-admin role to another admin. Arch-admin only.
func (n *Node) SetArchAdmin(caller, next [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.SetArchAdmin(caller, next)
}

// EditAcceptedCollateralType registers or reconfigures a collateral type.
func (n *Node) EditAcceptedCollateralType(caller [20]byte, symbol string, spotPrice, lockedAmountLimit, dustLevel, creditRatio *big.Int, leveraged bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.EditAcceptedCollateralType(caller, symbol, spotPrice, lockedAmountLimit, dustLevel, creditRatio, leveraged)
}

// EditCreditRatio retunes a registered collateral type's credit ratio. Admin
// only.
func (n *Node) EditCreditRatio(caller [20]byte, symbol string, ratio *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.EditCreditRatio(caller, symbol, ratio)
}

// EditLockedAmountLimit retunes a registered collateral type's locked amount
// limit. Admin only.
func (n *Node) EditLockedAmountLimit(caller [20]byte, symbol string, limit *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.EditLockedAmountLimit(caller, symbol, limit)
}

// EditDustLevel retunes a registered collateral type's dust level. Admin only.
func (n *Node) EditDustLevel(caller [20]byte, symbol string, dust *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.EditDustLevel(caller, symbol, dust)
}

// EditLeverageStatus flips a registered collateral type's leveraged flag.
// Admin only.
func (n *Node) EditLeverageStatus(caller [20]byte, symbol string, leveraged bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.EditLeverageStatus(caller, symbol, leveraged)
}

// UpdateSpotPrice sets a collateral type's spot price. Admin only.
func (n *Node) UpdateSpotPrice(caller [20]byte, symbol string, price *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.UpdateSpotPrice(caller, symbol, price)
}

// SetMintFee sets the protocol loan fee. Admin only.
func (n *Node) SetMintFee(caller [20]byte, fee *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.SetMintFee(caller, fee)
}

// SetProtocolDebtCeiling sets the global debt ceiling. Admin only.
func (n *Node) SetProtocolDebtCeiling(caller [20]byte, ceiling *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.SetProtocolDebtCeiling(caller, ceiling)
}

// UpdateRate applies a one-off delta to the accumulated rate. Admin only.
func (n *Node) UpdateRate(caller [20]byte, delta *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.UpdateRate(caller, delta)
}

// SetRatePerSecond sets the per-second compounding factor. Admin only.
func (n *Node) SetRatePerSecond(caller [20]byte, factor *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.SetRatePerSecond(caller, factor)
}

// AccrueInterest folds elapsed time into the accumulated rate.
func (n *Node) AccrueInterest() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.AccrueInterest()
}

// Liquidate seizes an unhealthy vault and opens a collateral auction,
// returning the auction id.
func (n *Node) Liquidate(user [20]byte) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.liquidation.Liquidate(user)
}

// SetLotSize sets the per-liquidation debt lot size. Admin only.
func (n *Node) SetLotSize(caller [20]byte, lotSize *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.liquidation.SetLotSize(caller, lotSize)
}

// SetLiquidationPenalty sets the liquidation surcharge. Admin only.
func (n *Node) SetLiquidationPenalty(caller [20]byte, penalty *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.liquidation.SetLiquidationPenalty(caller, penalty)
}

// SetAuctionWindows overrides the auction duration and bid window, both in
// seconds.
func (n *Node) SetAuctionWindows(auctionDuration, bidWindow int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.auctions.SetWindows(auctionDuration, bidWindow)
}

// RaiseBid places a first-phase debt bid on an auction.
func (n *Node) RaiseBid(bidder [20]byte, id uint64, bidAmount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.Raise(bidder, id, bidAmount)
}

// ConvergeBid places a second-phase lot-shrinking bid on an auction.
func (n *Node) ConvergeBid(bidder [20]byte, id uint64, lotFraction *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.Converge(bidder, id, lotFraction)
}

// EndAuction settles a finished auction.
func (n *Node) EndAuction(id uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.End(id)
}

// RestartAuction reopens an expired auction that drew no bid.
func (n *Node) RestartAuction(id uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.Restart(id)
}

// Stake locks or unlocks stakeable token; a zero delta claims rewards.
func (n *Node) Stake(user [20]byte, delta *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.Stake(user, delta)
}

// PushStakeable credits a user's unlocked stakeable balance. Admin only.
func (n *Node) PushStakeable(caller, user [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.PushStakeable(caller, user, amount)
}

// PullStakeable debits a user's unlocked stakeable balance. Admin only.
func (n *Node) PullStakeable(caller, user [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.PullStakeable(caller, user, amount)
}

// PushRewards injects rewards for a registered token. Admin only.
func (n *Node) PushRewards(caller [20]byte, symbol string, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.PushRewards(caller, symbol, amount)
}

// PullRewards withdraws a user's realized rewards. Admin only.
func (n *Node) PullRewards(caller, user [20]byte, symbol string, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.PullRewards(caller, user, symbol, amount)
}

// RegisterRewardToken adds a reward token to the staking vault. Admin only.
func (n *Node) RegisterRewardToken(caller [20]byte, symbol string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.RegisterRewardToken(caller, symbol)
}

// SetStakedMintRatio sets the share minted per locked stakeable. Admin only.
func (n *Node) SetStakedMintRatio(caller [20]byte, ratio *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.SetStakedMintRatio(caller, ratio)
}

// SetStakedAmountLimit caps the total locked stakeable. Admin only.
func (n *Node) SetStakedAmountLimit(caller [20]byte, limit *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.SetStakedAmountLimit(caller, limit)
}

// Teleport burns the user's stable and records an outbound transfer,
// returning the transfer id.
func (n *Node) Teleport(user [20]byte, destChain uint32, to [20]byte, amount *big.Int) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pipe.SendFrom(user, destChain, to, amount)
}

// ReceiveTeleport mints an inbound transfer from a trusted remote. Admin only.
func (n *Node) ReceiveTeleport(caller [20]byte, srcChain uint32, remote [20]byte, transferID string, recipient [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pipe.Receive(caller, srcChain, remote, transferID, recipient, amount)
}

// RegisterTrustedRemote registers a remote pipe address. Admin only.
func (n *Node) RegisterTrustedRemote(caller [20]byte, chainID uint32, remote [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pipe.RegisterTrustedRemote(caller, chainID, remote)
}

// SetTeleportFee sets the inbound teleport fee. Admin only.
func (n *Node) SetTeleportFee(caller [20]byte, fee *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pipe.SetTeleportFee(caller, fee)
}

// ConfigurePSM sets the peg-stability gem and its fees.
func (n *Node) ConfigurePSM(symbol string, decimals uint8, mintFee, burnFee *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.psm.Configure(symbol, decimals, mintFee, burnFee)
}

// SellGem swaps gem for stable token through the peg-stability module.
func (n *Node) SellGem(user [20]byte, gemAmount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.psm.SellGem(user, gemAmount)
}

// BuyGem swaps stable token back into gem through the peg-stability module.
func (n *Node) BuyGem(user [20]byte, gemAmount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.psm.BuyGem(user, gemAmount)
}

// RegisterOracle attaches a price feed for a collateral symbol. Promoted
// prices flow into the collateral book through the liquidation module's
// admin rights.
func (n *Node) RegisterOracle(symbol string, feed oracle.Feed) *oracle.OSM {
	n.mu.Lock()
	defer n.mu.Unlock()
	osm := oracle.New(symbol, feed)
	osm.SetLedger(n.vault, ModuleAddress(ModuleLiquidation))
	n.oracles[symbol] = osm
	return osm
}

// PokeOracles pokes every registered oracle. Oracles still inside their hop
// window are skipped; the first hard failure is returned.
func (n *Node) PokeOracles() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for symbol, osm := range n.oracles {
		if err := osm.Poke(); err != nil {
			if errors.Is(err, oracle.ErrNotPassed) {
				continue
			}
			n.log.Warn("oracle poke failed", "symbol", symbol, "error", err)
			return err
		}
	}
	return nil
}

// GetVault returns a copy of a user's vault.
func (n *Node) GetVault(owner [20]byte) (*vault.Vault, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.GetVault(owner)
}

// GetCollateralType returns a copy of a registered collateral type.
func (n *Node) GetCollateralType(symbol string) (*vault.CollateralType, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.GetCollateralType(symbol)
}

// GetGlobals returns a copy of the ledger globals.
func (n *Node) GetGlobals() (*vault.Globals, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.GetGlobals()
}

// GetDeficit returns an address's recorded protocol deficit.
func (n *Node) GetDeficit(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.GetDeficit(addr)
}

// CreditValue returns the credit-weighted value of a user's locked
// collateral in Rad.
func (n *Node) CreditValue(user [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.CreditValue(user)
}

// PortfolioValue returns the spot value of a user's collateral in Rad.
func (n *Node) PortfolioValue(user [20]byte, excludeLeveraged bool) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.PortfolioValue(user, excludeLeveraged)
}

// DebtValue returns a user's debt at the current rate in Rad.
func (n *Node) DebtValue(user [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.DebtValue(user)
}

// GetAuction returns a copy of an open auction.
func (n *Node) GetAuction(id uint64) (*auction.Auction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.GetAuction(id)
}

// GetStakingPosition returns a copy of a user's staking position.
func (n *Node) GetStakingPosition(owner [20]byte) (*staking.Position, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.GetPosition(owner)
}

// GetStakingGlobals returns a copy of the staking globals.
func (n *Node) GetStakingGlobals() (*staking.Globals, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.GetGlobals()
}

// PendingRewards returns a user's unclaimed rewards for a token.
func (n *Node) PendingRewards(user [20]byte, symbol string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.staking.PendingRewards(user, symbol)
}

// GetTransfer returns a copy of a recorded teleport transfer.
func (n *Node) GetTransfer(id string) (*bridge.Transfer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pipe.GetTransfer(id)
}

// StateManager exposes the underlying state for snapshotting.
func (n *Node) StateManager() *state.Manager { return n.state }

func hex(addr [20]byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 2, 42)
	out[0], out[1] = '0', 'x'
	for _, b := range addr {
		out = append(out, digits[b>>4], digits[b&0x0f])
	}
	return string(out)
}
