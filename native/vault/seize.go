package vault

import (
	"math/big"

	"lmcv/core/events"
	"lmcv/fixed"
)

// Seize confiscates locked collateral and normalized debt from a vault. The
// collateral lands in the recipient's unlocked balance and the debt's current
// value is recorded as protocol deficit against the debt recipient. No credit
// or dust checks apply: the target vault is by definition unhealthy or being
// deliberately liquidated. Admin only.
func (e *Engine) Seize(caller [20]byte, symbols []string, amounts []*big.Int, debtAmount *big.Int, vaultOwner, collateralRecipient, debtRecipient [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if len(symbols) != len(amounts) {
		return ErrMismatchedLengths
	}
	if debtAmount == nil {
		debtAmount = big.NewInt(0)
	}
	if debtAmount.Sign() < 0 {
		return ErrInvalidAmount
	}

	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(g, caller); err != nil {
		return err
	}

	vaults := e.newVaultSet()
	collateral := e.newCollateralSet()
	owner, err := vaults.get(vaultOwner)
	if err != nil {
		return err
	}
	recipient, err := vaults.get(collateralRecipient)
	if err != nil {
		return err
	}

	for i, raw := range symbols {
		symbol, err := NormalizeSymbol(raw)
		if err != nil {
			return ErrUnknownCollateral
		}
		ct, err := collateral.get(symbol)
		if err != nil {
			return err
		}
		amount := amounts[i]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		if amount.Sign() < 0 {
			return ErrInvalidAmount
		}
		remaining := new(big.Int).Sub(owner.locked(symbol), amount)
		if remaining.Sign() < 0 {
			return ErrInsufficientBalance
		}
		owner.setLocked(symbol, remaining)
		recipient.setUnlocked(symbol, new(big.Int).Add(recipient.unlocked(symbol), amount))
		ct.LockedAmount = new(big.Int).Sub(ct.LockedAmount, amount)
	}

	if debtAmount.Sign() > 0 {
		if debtAmount.Cmp(owner.NormalizedDebt) > 0 {
			return ErrInsufficientBalance
		}
		owner.NormalizedDebt = new(big.Int).Sub(owner.NormalizedDebt, debtAmount)
		g.TotalNormalizedDebt = new(big.Int).Sub(g.TotalNormalizedDebt, debtAmount)

		deficit, err := e.GetDeficit(debtRecipient)
		if err != nil {
			return err
		}
		value := fixed.MulWadRay(debtAmount, g.AccumulatedRate)
		g.TotalDeficit = new(big.Int).Add(g.TotalDeficit, value)
		if err := e.state.PutDeficit(debtRecipient, new(big.Int).Add(deficit, value)); err != nil {
			return err
		}
	}

	if err := collateral.persist(); err != nil {
		return err
	}
	if err := vaults.persist(); err != nil {
		return err
	}
	if err := e.state.PutGlobals(g); err != nil {
		return err
	}

	e.emit(events.Seize{
		VaultOwner:          vaultOwner,
		CollateralRecipient: collateralRecipient,
		DebtRecipient:       debtRecipient,
		DebtAmount:          copyBigInt(debtAmount),
	})
	return nil
}
