package vault

import (
	"math/big"
)

// Bootstrap installs the first administrator. It only succeeds while no arch
// admin has been assigned, so a running system cannot be re-seeded.
func (e *Engine) Bootstrap(admin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if g.ArchAdmin != ([20]byte{}) {
		return ErrNotAdmin
	}
	g.ArchAdmin = admin
	g.Admins[admin] = true
	return e.state.PutGlobals(g)
}

// Administrate grants or revokes admin privileges. Revoking the current arch
// admin fails: the check runs against the post-mutation admin set, so
// transferring the arch-admin role first and revoking the old address second
// succeeds, while the reverse order does not.
func (e *Engine) Administrate(caller, target [20]byte, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(g, caller); err != nil {
		return err
	}
	if enabled {
		g.Admins[target] = true
	} else {
		delete(g.Admins, target)
		if target == g.ArchAdmin {
			return ErrCannotRemoveArchAdminPrivilege
		}
	}
	return e.state.PutGlobals(g)
}

// SetArchAdmin transfers the arch-admin role. Only the current arch admin may
// call it; the new arch admin is granted regular admin status as part of the
// transfer.
func (e *Engine) SetArchAdmin(caller, next [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if caller != g.ArchAdmin {
		return ErrNotArchAdmin
	}
	g.ArchAdmin = next
	g.Admins[next] = true
	return e.state.PutGlobals(g)
}

// EditAcceptedCollateralType registers a collateral symbol or overwrites the
// parameters of an existing registration. Registration is the only way a new
// symbol enters the system; subsequent edits mutate freely.
func (e *Engine) EditAcceptedCollateralType(caller [20]byte, symbol string, spotPrice, lockedAmountLimit, dustLevel, creditRatio *big.Int, leveraged bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(g, caller); err != nil {
		return err
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return ErrUnknownCollateral
	}
	if creditRatio == nil || creditRatio.Sign() <= 0 {
		return ErrInvalidAmount
	}
	existing, err := e.state.CollateralType(normalized)
	if err != nil {
		return err
	}
	lockedAmount := big.NewInt(0)
	if existing != nil {
		lockedAmount = copyBigInt(existing.LockedAmount)
	}
	return e.state.PutCollateralType(&CollateralType{
		Symbol:            normalized,
		SpotPrice:         copyBigInt(spotPrice),
		LockedAmount:      lockedAmount,
		LockedAmountLimit: copyBigInt(lockedAmountLimit),
		DustLevel:         copyBigInt(dustLevel),
		CreditRatio:       copyBigInt(creditRatio),
		Leveraged:         leveraged,
	})
}

func (e *Engine) editCollateralField(caller [20]byte, symbol string, edit func(*CollateralType) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(g, caller); err != nil {
		return err
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return ErrUnknownCollateral
	}
	ct, err := e.state.CollateralType(normalized)
	if err != nil {
		return err
	}
	if ct == nil {
		return ErrUnknownCollateral
	}
	if err := edit(ct); err != nil {
		return err
	}
	return e.state.PutCollateralType(ct)
}

// UpdateSpotPrice sets the Ray price for a registered collateral symbol,
// normally driven by the oracle security module.
func (e *Engine) UpdateSpotPrice(caller [20]byte, symbol string, price *big.Int) error {
	return e.editCollateralField(caller, symbol, func(ct *CollateralType) error {
		if price == nil || price.Sign() < 0 {
			return ErrInvalidAmount
		}
		ct.SpotPrice = copyBigInt(price)
		return nil
	})
}

// EditCreditRatio sets the fraction of spot value counted toward borrowing
// power for a symbol.
func (e *Engine) EditCreditRatio(caller [20]byte, symbol string, ratio *big.Int) error {
	return e.editCollateralField(caller, symbol, func(ct *CollateralType) error {
		if ratio == nil || ratio.Sign() <= 0 {
			return ErrInvalidAmount
		}
		ct.CreditRatio = copyBigInt(ratio)
		return nil
	})
}

// EditLockedAmountLimit sets the global lock ceiling for a symbol.
func (e *Engine) EditLockedAmountLimit(caller [20]byte, symbol string, limit *big.Int) error {
	return e.editCollateralField(caller, symbol, func(ct *CollateralType) error {
		if limit == nil || limit.Sign() < 0 {
			return ErrInvalidAmount
		}
		ct.LockedAmountLimit = copyBigInt(limit)
		return nil
	})
}

// EditDustLevel sets the minimum nonzero locked amount per vault for a
// symbol.
func (e *Engine) EditDustLevel(caller [20]byte, symbol string, dust *big.Int) error {
	return e.editCollateralField(caller, symbol, func(ct *CollateralType) error {
		if dust == nil || dust.Sign() < 0 {
			return ErrInvalidAmount
		}
		ct.DustLevel = copyBigInt(dust)
		return nil
	})
}

// EditLeverageStatus toggles the leveraged flag on a symbol.
func (e *Engine) EditLeverageStatus(caller [20]byte, symbol string, leveraged bool) error {
	return e.editCollateralField(caller, symbol, func(ct *CollateralType) error {
		ct.Leveraged = leveraged
		return nil
	})
}

// SetMintFee sets the Ray fraction of newly minted debt diverted to the
// treasury.
func (e *Engine) SetMintFee(caller [20]byte, fee *big.Int) error {
	return e.editGlobals(caller, func(g *Globals) error {
		if fee == nil || fee.Sign() < 0 {
			return ErrInvalidAmount
		}
		g.MintFee = copyBigInt(fee)
		return nil
	})
}

// SetTreasury sets the address receiving mint fees and interest revenue.
func (e *Engine) SetTreasury(caller, treasury [20]byte) error {
	return e.editGlobals(caller, func(g *Globals) error {
		g.Treasury = treasury
		return nil
	})
}

// SetProtocolDebtCeiling sets the Rad cap on total outstanding debt value.
func (e *Engine) SetProtocolDebtCeiling(caller [20]byte, ceiling *big.Int) error {
	return e.editGlobals(caller, func(g *Globals) error {
		if ceiling == nil || ceiling.Sign() < 0 {
			return ErrInvalidAmount
		}
		g.ProtocolDebtCeiling = copyBigInt(ceiling)
		return nil
	})
}

// SetPSMAddress exempts the peg-stability module from the mint fee.
func (e *Engine) SetPSMAddress(caller, psm [20]byte) error {
	return e.editGlobals(caller, func(g *Globals) error {
		g.PSM = psm
		return nil
	})
}

func (e *Engine) editGlobals(caller [20]byte, edit func(*Globals) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(g, caller); err != nil {
		return err
	}
	if err := edit(g); err != nil {
		return err
	}
	return e.state.PutGlobals(g)
}
