package liquidation

import (
	"errors"
	"math/big"

	"lmcv/core/events"
	"lmcv/fixed"
	"lmcv/native/vault"
)

var (
	errNilState = errors.New("liquidation engine: ledger not configured")

	// ErrNotConfigured signals a liquidation before lot size and penalty are set.
	ErrNotConfigured = errors.New("liquidation engine: lot size or penalty not configured")
	// ErrWithinCreditLimit signals a liquidation attempt on a healthy vault.
	ErrWithinCreditLimit = errors.New("liquidation engine: vault within credit limit")
	// ErrNotAdmin signals a configuration call from a non-admin address.
	ErrNotAdmin = errors.New("liquidation engine: caller is not an admin")
	// ErrInvalidAmount signals a malformed lot size or penalty.
	ErrInvalidAmount = errors.New("liquidation engine: invalid amount")
)

// ledger is the slice of the vault engine the liquidator drives.
type ledger interface {
	GetVault(owner [20]byte) (*vault.Vault, error)
	GetGlobals() (*vault.Globals, error)
	CreditValue(user [20]byte) (*big.Int, error)
	IsAdmin(addr [20]byte) (bool, error)
	Seize(caller [20]byte, symbols []string, amounts []*big.Int, debtAmount *big.Int, vaultOwner, collateralRecipient, debtRecipient [20]byte) error
}

// auctionHouse opens the collateral sale for a seized lot.
type auctionHouse interface {
	Start(caller [20]byte, symbols []string, amounts []*big.Int, askingAmount *big.Int, liquidated, treasury [20]byte) (uint64, error)
}

// Engine is the liquidator: it carves unhealthy vaults into lots no larger
// than the configured lot size and hands each lot to the auction house. The
// module address must hold admin rights on the vault engine; seized
// collateral lands on the auction house's escrow address.
type Engine struct {
	ledger   ledger
	auctions auctionHouse
	emitter  events.Emitter
	module   [20]byte
	escrow   [20]byte

	lotSize *big.Int
	penalty *big.Int
}

// NewEngine constructs an unconfigured liquidator.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetLedger wires the liquidator to the vault engine.
func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetAuctionHouse wires the liquidator to the auction house.
func (e *Engine) SetAuctionHouse(a auctionHouse) { e.auctions = a }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetModuleAddress sets the address the liquidator acts as on the vault
// engine.
func (e *Engine) SetModuleAddress(addr [20]byte) { e.module = addr }

// SetEscrowAddress sets the auction house address receiving seized lots.
func (e *Engine) SetEscrowAddress(addr [20]byte) { e.escrow = addr }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// SetLotSize sets the maximum Rad value carved out per liquidation call.
// Admin only.
func (e *Engine) SetLotSize(caller [20]byte, lotSize *big.Int) error {
	if e == nil || e.ledger == nil {
		return errNilState
	}
	if lotSize == nil || lotSize.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.lotSize = new(big.Int).Set(lotSize)
	return nil
}

// SetLiquidationPenalty sets the Ray markup applied to seized debt when
// computing the auction asking amount. Admin only.
func (e *Engine) SetLiquidationPenalty(caller [20]byte, penalty *big.Int) error {
	if e == nil || e.ledger == nil {
		return errNilState
	}
	if penalty == nil || penalty.Cmp(fixed.Ray) < 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.penalty = new(big.Int).Set(penalty)
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	ok, err := e.ledger.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAdmin
	}
	return nil
}

// Liquidate seizes up to one lot from an unhealthy vault and opens an auction
// for it. Permissionless: any keeper may call it. When the position's
// credit-weighted value fits inside the lot size the whole vault is seized;
// otherwise a proportional slice of every locked symbol and of the debt is
// carved out, so repeated calls walk the position down to exactly zero.
// Returns the opened auction's id.
func (e *Engine) Liquidate(user [20]byte) (uint64, error) {
	if e == nil || e.ledger == nil || e.auctions == nil {
		return 0, errNilState
	}
	if e.lotSize == nil || e.penalty == nil {
		return 0, ErrNotConfigured
	}
	g, err := e.ledger.GetGlobals()
	if err != nil {
		return 0, err
	}
	v, err := e.ledger.GetVault(user)
	if err != nil {
		return 0, err
	}
	if v.NormalizedDebt.Sign() == 0 {
		return 0, ErrWithinCreditLimit
	}
	credit, err := e.ledger.CreditValue(user)
	if err != nil {
		return 0, err
	}
	debtValue := fixed.MulWadRay(v.NormalizedDebt, g.AccumulatedRate)
	if debtValue.Cmp(credit) <= 0 {
		return 0, ErrWithinCreditLimit
	}

	// Lot fraction of the credit-weighted position value, capped at one.
	fraction := new(big.Int).Set(fixed.Ray)
	if credit.Sign() > 0 && e.lotSize.Cmp(credit) < 0 {
		fraction = fixed.RayDiv(e.lotSize, credit)
	}

	symbols := make([]string, 0, len(v.LockedList))
	amounts := make([]*big.Int, 0, len(v.LockedList))
	debtSeized := new(big.Int).Set(v.NormalizedDebt)
	if fraction.Cmp(fixed.Ray) < 0 {
		debtSeized = fixed.RayMul(v.NormalizedDebt, fraction)
	}
	for _, symbol := range v.LockedList {
		locked := v.Locked[symbol]
		if locked == nil || locked.Sign() == 0 {
			continue
		}
		amount := new(big.Int).Set(locked)
		if fraction.Cmp(fixed.Ray) < 0 {
			amount = fixed.RayMul(locked, fraction)
		}
		if amount.Sign() == 0 {
			continue
		}
		symbols = append(symbols, symbol)
		amounts = append(amounts, amount)
	}

	if err := e.ledger.Seize(e.module, symbols, amounts, debtSeized, user, e.escrow, g.Treasury); err != nil {
		return 0, err
	}

	asking := fixed.RayMul(fixed.MulWadRay(debtSeized, g.AccumulatedRate), e.penalty)
	id, err := e.auctions.Start(e.module, symbols, amounts, asking, user, g.Treasury)
	if err != nil {
		return 0, err
	}
	e.emit(events.Liquidation{
		User:       user,
		AuctionID:  id,
		DebtSeized: new(big.Int).Set(debtSeized),
		Asking:     new(big.Int).Set(asking),
	})
	return id, nil
}
