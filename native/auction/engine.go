package auction

import (
	"errors"
	"math/big"
	"time"

	"lmcv/core/events"
	"lmcv/fixed"
	"lmcv/native/vault"
)

var (
	errNilState  = errors.New("auction engine: state not configured")
	errNilLedger = errors.New("auction engine: ledger not configured")

	// ErrHighestBidderNotSet signals an unknown or already settled auction.
	ErrHighestBidderNotSet = errors.New("auction engine: highest bidder not set")
	// ErrBidExpiryReached signals a bid past the soft bid deadline.
	ErrBidExpiryReached = errors.New("auction engine: bid expiry reached")
	// ErrAuctionEnded signals a bid past the hard auction deadline.
	ErrAuctionEnded = errors.New("auction engine: auction ended")
	// ErrAuctionNotFinished signals settlement before either deadline passed.
	ErrAuctionNotFinished = errors.New("auction engine: auction not finished")
	// ErrBidAboveAsking signals a raise bid above the asking amount.
	ErrBidAboveAsking = errors.New("auction engine: bid above asking amount")
	// ErrBidBelowMinimum signals a raise bid below the minimum bid floor.
	ErrBidBelowMinimum = errors.New("auction engine: bid below minimum")
	// ErrBidMustExceedPrior signals a raise bid at or below the standing bid.
	ErrBidMustExceedPrior = errors.New("auction engine: bid must exceed prior bid")
	// ErrInsufficientIncrease signals a raise step below the minimum increase.
	ErrInsufficientIncrease = errors.New("auction engine: insufficient bid increase")
	// ErrFirstPhaseNotFinished signals converge before the asking was fully bid.
	ErrFirstPhaseNotFinished = errors.New("auction engine: first phase not finished")
	// ErrLotNotLower signals a converge fraction not below the accepted one.
	ErrLotNotLower = errors.New("auction engine: lot fraction not lower")
	// ErrInsufficientDecrease signals a converge step below the minimum decrease.
	ErrInsufficientDecrease = errors.New("auction engine: insufficient lot decrease")
	// ErrBidAlreadyPlaced signals a restart on an auction that has bids.
	ErrBidAlreadyPlaced = errors.New("auction engine: bid already placed")
	// ErrNotAdmin signals a start call from an unprivileged address.
	ErrNotAdmin = errors.New("auction engine: caller is not an admin")
	// ErrInvalidAmount signals a malformed bid, lot or fraction.
	ErrInvalidAmount = errors.New("auction engine: invalid amount")
)

// Default deadline windows and step parameters.
const (
	DefaultAuctionDuration = int64(2 * 24 * time.Hour / time.Second)
	DefaultBidWindow       = int64(3 * time.Hour / time.Second)
)

// engineState is the persistence surface the auction house requires. Reads
// must return deep copies (or nil when absent).
type engineState interface {
	Auction(id uint64) (*Auction, error)
	PutAuction(*Auction) error
	DeleteAuction(id uint64) error
	NextAuctionID() (uint64, error)
}

// ledger is the slice of the vault engine the auction house drives: stable
// payments between bidders and the treasury, collateral release out of the
// auction module's escrow balance, spot prices for the minimum-bid floor, and
// the admin set gating Start.
type ledger interface {
	MoveStable(caller, from, to [20]byte, amount *big.Int) error
	MoveCollateral(caller, from, to [20]byte, symbol string, amount *big.Int) error
	GetCollateralType(symbol string) (*vault.CollateralType, error)
	IsAdmin(addr [20]byte) (bool, error)
}

// Engine is the two-phase collateral auction house. Seized collateral sits as
// unlocked balance on the module address; refunds of outbid bidders are drawn
// back out of the treasury, so the treasury must consent the module address as
// an agent at deploy time.
type Engine struct {
	state   engineState
	ledger  ledger
	emitter events.Emitter
	nowFn   func() int64
	module  [20]byte

	auctionDuration int64
	bidWindow       int64
	minBidFraction  *big.Int
	minBidIncrease  *big.Int
	minLotDecrease  *big.Int
}

// NewEngine constructs an auction house with the default windows, a 5% bid
// increase step, a 5% lot decrease step and no minimum bid floor.
func NewEngine() *Engine {
	return &Engine{
		emitter:         events.NoopEmitter{},
		nowFn:           func() int64 { return time.Now().Unix() },
		auctionDuration: DefaultAuctionDuration,
		bidWindow:       DefaultBidWindow,
		minBidFraction:  big.NewInt(0),
		minBidIncrease:  rayPercent(5),
		minLotDecrease:  rayPercent(5),
	}
}

func rayPercent(pct int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(pct), fixed.Ray)
	return out.Quo(out, big.NewInt(100))
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the engine to the vault engine.
func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the deadline clock. Primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetModuleAddress sets the vault address escrowing auction lots.
func (e *Engine) SetModuleAddress(addr [20]byte) { e.module = addr }

// SetWindows overrides the auction and bid deadline windows, in seconds.
// Non-positive values keep the current setting.
func (e *Engine) SetWindows(auctionDuration, bidWindow int64) {
	if auctionDuration > 0 {
		e.auctionDuration = auctionDuration
	}
	if bidWindow > 0 {
		e.bidWindow = bidWindow
	}
}

// SetMinBidFraction sets the Ray fraction of max(collateral value, asking)
// that a first bid must reach. Zero disables the floor.
func (e *Engine) SetMinBidFraction(fraction *big.Int) {
	if fraction == nil || fraction.Sign() < 0 {
		return
	}
	e.minBidFraction = new(big.Int).Set(fraction)
}

// SetMinBidIncrease sets the Ray fraction each raise bid must add on top of
// the standing bid.
func (e *Engine) SetMinBidIncrease(fraction *big.Int) {
	if fraction == nil || fraction.Sign() < 0 {
		return
	}
	e.minBidIncrease = new(big.Int).Set(fraction)
}

// SetMinLotDecrease sets the Ray fraction each converge step must shave off
// the accepted lot fraction.
func (e *Engine) SetMinLotDecrease(fraction *big.Int) {
	if fraction == nil || fraction.Sign() < 0 {
		return
	}
	e.minLotDecrease = new(big.Int).Set(fraction)
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

// Start opens a new auction over a seized collateral lot. The lot must
// already sit on the module address as unlocked collateral. The caller, the
// liquidator, stands as the initial winner with a zero bid. Admin only.
func (e *Engine) Start(caller [20]byte, symbols []string, amounts []*big.Int, askingAmount *big.Int, liquidated, treasury [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if len(symbols) == 0 || len(symbols) != len(amounts) {
		return 0, ErrInvalidAmount
	}
	if askingAmount == nil || askingAmount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	ok, err := e.ledger.IsAdmin(caller)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotAdmin
	}

	lot := make(map[string]*big.Int, len(symbols))
	ordered := make([]string, 0, len(symbols))
	for i, symbol := range symbols {
		amount := amounts[i]
		if amount == nil || amount.Sign() <= 0 {
			return 0, ErrInvalidAmount
		}
		if _, seen := lot[symbol]; !seen {
			ordered = append(ordered, symbol)
			lot[symbol] = new(big.Int).Set(amount)
			continue
		}
		lot[symbol] = new(big.Int).Add(lot[symbol], amount)
	}

	id, err := e.state.NextAuctionID()
	if err != nil {
		return 0, err
	}
	record := &Auction{
		ID:            id,
		LotSymbols:    ordered,
		OriginalLot:   cloneAmounts(lot),
		Lot:           lot,
		AskingAmount:  new(big.Int).Set(askingAmount),
		DebtBid:       big.NewInt(0),
		CurrentWinner: caller,
		Liquidated:    liquidated,
		Treasury:      treasury,
		AuctionExpiry: e.now() + e.auctionDuration,
		LotFraction:   new(big.Int).Set(fixed.Ray),
	}
	if err := e.state.PutAuction(record); err != nil {
		return 0, err
	}
	e.emit(events.AuctionStarted{
		AuctionID:  id,
		Liquidated: liquidated,
		Asking:     new(big.Int).Set(askingAmount),
	})
	return id, nil
}

// Raise places a stable-token bid during the raise phase. The increment over
// the bidder's own standing bid, or the full amount for a new bidder, moves
// to the treasury; an outbid rival is refunded in full. Reaching the asking
// amount completes the raise phase.
func (e *Engine) Raise(bidder [20]byte, id uint64, bidAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if bidAmount == nil || bidAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	a, err := e.state.Auction(id)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrHighestBidderNotSet
	}
	now := e.now()
	if a.BidExpiry != 0 && now > a.BidExpiry {
		return ErrBidExpiryReached
	}
	if now > a.AuctionExpiry {
		return ErrAuctionEnded
	}
	if bidAmount.Cmp(a.AskingAmount) > 0 {
		return ErrBidAboveAsking
	}
	floor, err := e.minimumBid(a)
	if err != nil {
		return err
	}
	if bidAmount.Cmp(floor) < 0 {
		return ErrBidBelowMinimum
	}
	if a.DebtBid.Sign() > 0 {
		if bidAmount.Cmp(a.DebtBid) <= 0 {
			return ErrBidMustExceedPrior
		}
		step := new(big.Int).Add(fixed.Ray, e.minBidIncrease)
		required := fixed.RayMul(a.DebtBid, step)
		if bidAmount.Cmp(required) < 0 && bidAmount.Cmp(a.AskingAmount) < 0 {
			return ErrInsufficientIncrease
		}
	}

	prior := new(big.Int).Set(a.DebtBid)
	priorWinner := a.CurrentWinner
	if prior.Sign() > 0 && bidder == priorWinner {
		increment := new(big.Int).Sub(bidAmount, prior)
		if err := e.ledger.MoveStable(bidder, bidder, a.Treasury, increment); err != nil {
			return err
		}
	} else {
		if err := e.ledger.MoveStable(bidder, bidder, a.Treasury, bidAmount); err != nil {
			return err
		}
		if prior.Sign() > 0 {
			if err := e.ledger.MoveStable(e.module, a.Treasury, priorWinner, prior); err != nil {
				return err
			}
		}
	}

	a.DebtBid = new(big.Int).Set(bidAmount)
	a.CurrentWinner = bidder
	a.BidExpiry = now + e.bidWindow
	if err := e.state.PutAuction(a); err != nil {
		return err
	}
	e.emit(events.AuctionBid{
		AuctionID: id,
		Bidder:    bidder,
		Bid:       new(big.Int).Set(bidAmount),
	})
	return nil
}

// Converge accepts a smaller collateral lot at the full asking price. The
// fraction is a Ray share of the original lot and must undercut the standing
// fraction by at least the minimum decrease. The shaved collateral returns to
// the liquidated owner immediately; a caller displacing the standing winner
// pays the asking amount and the displaced winner is refunded.
func (e *Engine) Converge(bidder [20]byte, id uint64, lotFraction *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if lotFraction == nil || lotFraction.Sign() < 0 {
		return ErrInvalidAmount
	}
	a, err := e.state.Auction(id)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrHighestBidderNotSet
	}
	now := e.now()
	if a.BidExpiry != 0 && now > a.BidExpiry {
		return ErrBidExpiryReached
	}
	if now > a.AuctionExpiry {
		return ErrAuctionEnded
	}
	if a.DebtBid.Cmp(a.AskingAmount) < 0 {
		return ErrFirstPhaseNotFinished
	}
	if lotFraction.Cmp(a.LotFraction) >= 0 {
		return ErrLotNotLower
	}
	step := new(big.Int).Sub(fixed.Ray, e.minLotDecrease)
	ceiling := fixed.RayMul(a.LotFraction, step)
	if lotFraction.Cmp(ceiling) > 0 {
		return ErrInsufficientDecrease
	}

	if bidder != a.CurrentWinner {
		if err := e.ledger.MoveStable(bidder, bidder, a.Treasury, a.AskingAmount); err != nil {
			return err
		}
		if err := e.ledger.MoveStable(e.module, a.Treasury, a.CurrentWinner, a.AskingAmount); err != nil {
			return err
		}
	}

	// The fraction applies to the original lot at start, so each step's
	// return amount is the difference against the currently remaining lot.
	for _, symbol := range a.LotSymbols {
		target := fixed.RayMul(a.OriginalLot[symbol], lotFraction)
		back := new(big.Int).Sub(a.Lot[symbol], target)
		if back.Sign() > 0 {
			if err := e.ledger.MoveCollateral(e.module, e.module, a.Liquidated, symbol, back); err != nil {
				return err
			}
		}
		a.Lot[symbol] = target
	}

	a.LotFraction = new(big.Int).Set(lotFraction)
	a.CurrentWinner = bidder
	a.BidExpiry = now + e.bidWindow
	if err := e.state.PutAuction(a); err != nil {
		return err
	}
	e.emit(events.AuctionConverge{
		AuctionID:   id,
		Bidder:      bidder,
		LotFraction: new(big.Int).Set(lotFraction),
	})
	return nil
}

// End settles a finished auction: the remaining lot moves to the current
// winner and the record is deleted. An auction is finished once its bid
// window lapsed or its hard expiry passed; a no-bid auction can only be
// restarted, never ended.
func (e *Engine) End(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, err := e.state.Auction(id)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrHighestBidderNotSet
	}
	now := e.now()
	finished := (a.BidExpiry != 0 && now > a.BidExpiry) || now > a.AuctionExpiry
	if !finished || a.DebtBid.Sign() == 0 {
		return ErrAuctionNotFinished
	}
	for _, symbol := range a.LotSymbols {
		amount := a.Lot[symbol]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		if err := e.ledger.MoveCollateral(e.module, e.module, a.CurrentWinner, symbol, amount); err != nil {
			return err
		}
	}
	if err := e.state.DeleteAuction(id); err != nil {
		return err
	}
	e.emit(events.AuctionSettled{
		AuctionID: id,
		Winner:    a.CurrentWinner,
		Bid:       new(big.Int).Set(a.DebtBid),
	})
	return nil
}

// Restart gives a no-bid auction that passed its hard expiry a fresh window.
func (e *Engine) Restart(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, err := e.state.Auction(id)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrHighestBidderNotSet
	}
	if a.DebtBid.Sign() > 0 {
		return ErrBidAlreadyPlaced
	}
	now := e.now()
	if now <= a.AuctionExpiry {
		return ErrAuctionNotFinished
	}
	a.AuctionExpiry = now + e.auctionDuration
	if err := e.state.PutAuction(a); err != nil {
		return err
	}
	e.emit(events.AuctionRestarted{AuctionID: id, Expiry: a.AuctionExpiry})
	return nil
}

// GetAuction returns a copy of the auction record, or nil once settled.
func (e *Engine) GetAuction(id uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.Auction(id)
}

// AskingAmount returns the asking amount for an auction, or zero once the
// record is deleted by settlement.
func (e *Engine) AskingAmount(id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.state.Auction(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return big.NewInt(0), nil
	}
	return copyBigInt(a.AskingAmount), nil
}

// minimumBid computes the bid floor: the larger of the lot's spot value and
// the asking amount, scaled by the configured fraction.
func (e *Engine) minimumBid(a *Auction) (*big.Int, error) {
	if e.minBidFraction.Sign() == 0 {
		return big.NewInt(0), nil
	}
	collateralValue := big.NewInt(0)
	for _, symbol := range a.LotSymbols {
		ct, err := e.ledger.GetCollateralType(symbol)
		if err != nil {
			return nil, err
		}
		collateralValue.Add(collateralValue, fixed.MulWadRay(a.Lot[symbol], ct.SpotPrice))
	}
	base := fixed.Max(collateralValue, a.AskingAmount)
	return fixed.RayMul(base, e.minBidFraction), nil
}
