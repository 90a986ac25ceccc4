package psm

import (
	"errors"
	"math/big"

	"lmcv/fixed"
)

var (
	errNilLedger = errors.New("psm engine: ledger not configured")

	// ErrNotConfigured signals a swap before the gem symbol is set.
	ErrNotConfigured = errors.New("psm engine: gem not configured")
	// ErrInvalidAmount signals a malformed amount, fee or decimal count.
	ErrInvalidAmount = errors.New("psm engine: invalid amount")
)

// ledger is the slice of the vault engine the peg-stability module drives.
// The module address must be rely'd on the vault and registered through
// SetPSMAddress so its mints are exempt from the vault mint fee.
type ledger interface {
	Loan(caller, user [20]byte, symbols []string, deltaCollateral []*big.Int, deltaDebt *big.Int) error
	Repay(caller, user [20]byte, symbols []string, deltaCollateral []*big.Int, deltaDebt *big.Int) error
	MoveStable(caller, from, to [20]byte, amount *big.Int) error
	MoveCollateral(caller, from, to [20]byte, symbol string, amount *big.Int) error
	PushCollateral(caller, user [20]byte, symbol string, amount *big.Int) error
}

// Engine swaps a registered stable collateral (the gem) for the stable token
// at one-to-one value, minus configurable fees. Gem amounts arrive in the
// token's native decimals and are scaled up to Wad on the way in and
// truncated back down on the way out.
type Engine struct {
	ledger ledger
	module [20]byte

	symbol   string
	decimals uint8
	mintFee  *big.Int
	burnFee  *big.Int
}

// NewEngine constructs an unconfigured peg-stability module.
func NewEngine() *Engine {
	return &Engine{mintFee: big.NewInt(0), burnFee: big.NewInt(0)}
}

// SetLedger wires the module to the vault engine.
func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetModuleAddress sets the vault address the module operates as.
func (e *Engine) SetModuleAddress(addr [20]byte) { e.module = addr }

// Configure sets the gem symbol, its native decimal count and the Ray swap
// fees taken on mint (gem in) and burn (gem out).
func (e *Engine) Configure(symbol string, decimals uint8, mintFee, burnFee *big.Int) error {
	if symbol == "" || decimals > 18 {
		return ErrInvalidAmount
	}
	if mintFee == nil || mintFee.Sign() < 0 || burnFee == nil || burnFee.Sign() < 0 {
		return ErrInvalidAmount
	}
	e.symbol = symbol
	e.decimals = decimals
	e.mintFee = new(big.Int).Set(mintFee)
	e.burnFee = new(big.Int).Set(burnFee)
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.ledger == nil {
		return errNilLedger
	}
	if e.symbol == "" {
		return ErrNotConfigured
	}
	return nil
}

// SellGem takes gemAmount of the gem (native decimals) from the user and
// pays out stable token at par minus the mint fee. The gem locks in the
// module's own vault backing the minted debt.
func (e *Engine) SellGem(user [20]byte, gemAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if gemAmount == nil || gemAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	amountWad := e.scaleUp(gemAmount)

	// Custody of the external gem is the join adapter's concern; here the
	// gem lands on the module's unlocked balance and is locked immediately.
	if err := e.ledger.PushCollateral(e.module, e.module, e.symbol, amountWad); err != nil {
		return err
	}
	if err := e.ledger.Loan(e.module, e.module, []string{e.symbol}, []*big.Int{amountWad}, amountWad); err != nil {
		return err
	}

	payout := fixed.WadToRad(amountWad)
	fee := fixed.RayMul(payout, e.mintFee)
	payout = payout.Sub(payout, fee)
	return e.ledger.MoveStable(e.module, e.module, user, payout)
}

// BuyGem takes stable token from the user at par plus the burn fee and
// releases gemAmount of the gem (native decimals) to the user's unlocked
// balance. The retained fee stays on the module's stable balance.
func (e *Engine) BuyGem(user [20]byte, gemAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if gemAmount == nil || gemAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	amountWad := e.scaleUp(gemAmount)

	cost := fixed.WadToRad(amountWad)
	fee := fixed.RayMul(cost, e.burnFee)
	cost = cost.Add(cost, fee)
	if err := e.ledger.MoveStable(user, user, e.module, cost); err != nil {
		return err
	}
	if err := e.ledger.Repay(e.module, e.module, []string{e.symbol}, []*big.Int{amountWad}, amountWad); err != nil {
		return err
	}
	return e.ledger.MoveCollateral(e.module, e.module, user, e.symbol, amountWad)
}

// Quote returns the stable-token Rad amount a SellGem of gemAmount pays out.
func (e *Engine) Quote(gemAmount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if gemAmount == nil || gemAmount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	payout := fixed.WadToRad(e.scaleUp(gemAmount))
	fee := fixed.RayMul(payout, e.mintFee)
	return payout.Sub(payout, fee), nil
}

// ScaleDown converts a Wad gem amount back to native decimals, truncating.
func (e *Engine) ScaleDown(amountWad *big.Int) *big.Int {
	if amountWad == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(amountWad, e.scaleFactor())
}

func (e *Engine) scaleUp(native *big.Int) *big.Int {
	return new(big.Int).Mul(native, e.scaleFactor())
}

func (e *Engine) scaleFactor() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-e.decimals)), nil)
}
