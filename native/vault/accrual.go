package vault

import (
	"math/big"

	"lmcv/core/events"
	"lmcv/fixed"
)

// UpdateRate applies a signed Ray delta to the accumulated rate multiplier.
// The whole debt base is revalued implicitly, since debt is stored
// normalized; the delta's monetary effect against the current normalized debt
// accrues to the treasury as interest revenue (or is charged back on a
// negative delta).
func (e *Engine) UpdateRate(caller [20]byte, delta *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if delta == nil {
		return ErrInvalidAmount
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(g, caller); err != nil {
		return err
	}
	return e.applyRateDelta(g, delta)
}

// SetRatePerSecond configures the per-second compounding factor used by
// AccrueInterest. One Ray disables drift; values below one Ray model negative
// real rates. Admin only.
func (e *Engine) SetRatePerSecond(caller [20]byte, factor *big.Int) error {
	return e.editGlobals(caller, func(g *Globals) error {
		if factor == nil || factor.Sign() <= 0 {
			return ErrInvalidAmount
		}
		g.RatePerSecond = copyBigInt(factor)
		return nil
	})
}

// AccrueInterest compounds the accumulated rate by the configured per-second
// factor for the wall-clock time elapsed since the last accrual. Expiry of
// the elapsed window is lazy: nothing accrues until somebody pokes. Callable
// by anyone.
func (e *Engine) AccrueInterest() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	now := e.now()
	if g.LastAccrual == 0 {
		g.LastAccrual = now
		return e.state.PutGlobals(g)
	}
	elapsed := now - g.LastAccrual
	if elapsed <= 0 {
		return nil
	}
	g.LastAccrual = now
	if g.RatePerSecond.Cmp(fixed.Ray) == 0 {
		return e.state.PutGlobals(g)
	}
	factor := fixed.RPow(g.RatePerSecond, uint64(elapsed))
	next := fixed.RayMul(g.AccumulatedRate, factor)
	delta := new(big.Int).Sub(next, g.AccumulatedRate)
	return e.applyRateDelta(g, delta)
}

func (e *Engine) applyRateDelta(g *Globals, delta *big.Int) error {
	next := new(big.Int).Add(g.AccumulatedRate, delta)
	if next.Sign() <= 0 {
		return ErrInvalidAmount
	}
	g.AccumulatedRate = next

	revenue := fixed.MulWadRay(g.TotalNormalizedDebt, delta)
	if revenue.Sign() != 0 {
		vaults := e.newVaultSet()
		treasury, err := vaults.get(g.Treasury)
		if err != nil {
			return err
		}
		treasury.StableBalance = new(big.Int).Add(treasury.StableBalance, revenue)
		g.TotalStable = new(big.Int).Add(g.TotalStable, revenue)
		if err := vaults.persist(); err != nil {
			return err
		}
	}
	if err := e.state.PutGlobals(g); err != nil {
		return err
	}
	e.emit(events.RateUpdate{
		Delta:           copyBigInt(delta),
		AccumulatedRate: copyBigInt(g.AccumulatedRate),
	})
	return nil
}
