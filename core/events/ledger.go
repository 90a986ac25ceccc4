package events

import "math/big"

// Event type identifiers emitted by the vault, liquidation, auction and
// staking engines.
const (
	TypeLoan                = "vault.loan"
	TypeRepay               = "vault.repay"
	TypeRateUpdate          = "vault.rate_update"
	TypeSeize               = "vault.seize"
	TypeLiquidation         = "liquidation.started"
	TypeAuctionStarted      = "auction.started"
	TypeAuctionBid          = "auction.bid"
	TypeAuctionConverge     = "auction.converge"
	TypeAuctionSettled      = "auction.settled"
	TypeAuctionRestarted    = "auction.restarted"
	TypeStakeChanged        = "staking.stake_changed"
	TypeRewardsInjected     = "staking.rewards_injected"
	TypeTeleportInitiated   = "bridge.teleport_initiated"
	TypeTeleportReceived    = "bridge.teleport_received"
)

// Loan captures a successful loan call against a vault.
type Loan struct {
	User           [20]byte
	Symbols        []string
	DeltaDebt      *big.Int
	NormalizedDebt *big.Int
}

func (Loan) EventType() string { return TypeLoan }

// Repay captures a successful repayment against a vault.
type Repay struct {
	User           [20]byte
	Symbols        []string
	DeltaDebt      *big.Int
	NormalizedDebt *big.Int
}

func (Repay) EventType() string { return TypeRepay }

// RateUpdate records a change to the accumulated rate multiplier.
type RateUpdate struct {
	Delta           *big.Int
	AccumulatedRate *big.Int
}

func (RateUpdate) EventType() string { return TypeRateUpdate }

// Seize records collateral and debt confiscated from an unhealthy vault.
type Seize struct {
	VaultOwner          [20]byte
	CollateralRecipient [20]byte
	DebtRecipient       [20]byte
	DebtAmount          *big.Int
}

func (Seize) EventType() string { return TypeSeize }

// Liquidation records a liquidation event and the auction it opened.
type Liquidation struct {
	User      [20]byte
	AuctionID uint64
	DebtSeized *big.Int
	Asking     *big.Int
}

func (Liquidation) EventType() string { return TypeLiquidation }

// AuctionStarted announces a new collateral auction.
type AuctionStarted struct {
	AuctionID  uint64
	Liquidated [20]byte
	Asking     *big.Int
}

func (AuctionStarted) EventType() string { return TypeAuctionStarted }

// AuctionBid records an accepted raise-phase bid.
type AuctionBid struct {
	AuctionID uint64
	Bidder    [20]byte
	Bid       *big.Int
}

func (AuctionBid) EventType() string { return TypeAuctionBid }

// AuctionConverge records an accepted converge-phase lot reduction.
type AuctionConverge struct {
	AuctionID   uint64
	Bidder      [20]byte
	LotFraction *big.Int
}

func (AuctionConverge) EventType() string { return TypeAuctionConverge }

// AuctionSettled records the terminal settlement of an auction.
type AuctionSettled struct {
	AuctionID uint64
	Winner    [20]byte
	Bid       *big.Int
}

func (AuctionSettled) EventType() string { return TypeAuctionSettled }

// AuctionRestarted records a no-bid auction being given a fresh expiry.
type AuctionRestarted struct {
	AuctionID uint64
	Expiry    int64
}

func (AuctionRestarted) EventType() string { return TypeAuctionRestarted }

// StakeChanged records a stake or unstake (including the zero-delta claim).
type StakeChanged struct {
	User   [20]byte
	Delta  *big.Int
	Staked *big.Int
}

func (StakeChanged) EventType() string { return TypeStakeChanged }

// RewardsInjected records an admin reward deposit into the staking vault.
type RewardsInjected struct {
	Token  string
	Amount *big.Int
}

func (RewardsInjected) EventType() string { return TypeRewardsInjected }

// TeleportInitiated records a local burn destined for a remote chain.
type TeleportInitiated struct {
	TransferID string
	User       [20]byte
	DestChain  uint32
	Amount     *big.Int
}

func (TeleportInitiated) EventType() string { return TypeTeleportInitiated }

// TeleportReceived records a remote burn minted locally, net of the fee.
type TeleportReceived struct {
	TransferID string
	Recipient  [20]byte
	SrcChain   uint32
	Amount     *big.Int
	Fee        *big.Int
}

func (TeleportReceived) EventType() string { return TypeTeleportReceived }
