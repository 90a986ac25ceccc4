package vault

import "math/big"

// PushCollateral credits deposited collateral to a user's unlocked balance.
// Called by join adapters after taking custody of the external token; join
// adapters are registered as admins.
func (e *Engine) PushCollateral(caller, user [20]byte, symbol string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
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
	collateral := e.newCollateralSet()
	if _, err := collateral.get(normalized); err != nil {
		return err
	}
	vaults := e.newVaultSet()
	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	v.setUnlocked(normalized, new(big.Int).Add(v.unlocked(normalized), amount))
	return vaults.persist()
}

// PullCollateral debits a user's unlocked balance ahead of releasing the
// external token back to them. Fails with ErrInsufficientBalance when the
// unlocked balance cannot cover the amount.
func (e *Engine) PullCollateral(caller, user [20]byte, symbol string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
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
	vaults := e.newVaultSet()
	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(v.unlocked(normalized), amount)
	if remaining.Sign() < 0 {
		return ErrInsufficientBalance
	}
	v.setUnlocked(normalized, remaining)
	return vaults.persist()
}

// MoveCollateral transfers unlocked collateral between vaults with the
// consent of the source owner.
func (e *Engine) MoveCollateral(caller, from, to [20]byte, symbol string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return ErrUnknownCollateral
	}
	vaults := e.newVaultSet()
	src, err := vaults.get(from)
	if err != nil {
		return err
	}
	if err := e.requireConsent(caller, from, src); err != nil {
		return err
	}
	remaining := new(big.Int).Sub(src.unlocked(normalized), amount)
	if remaining.Sign() < 0 {
		return ErrInsufficientBalance
	}
	dst, err := vaults.get(to)
	if err != nil {
		return err
	}
	src.setUnlocked(normalized, remaining)
	dst.setUnlocked(normalized, new(big.Int).Add(dst.unlocked(normalized), amount))
	return vaults.persist()
}

// Approve consents an agent to operate the user's vault (loans, repayments,
// stable and collateral moves) on their behalf.
func (e *Engine) Approve(user, agent [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	vaults := e.newVaultSet()
	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	v.Agents[agent] = true
	return vaults.persist()
}

// Disapprove withdraws a previously granted consent.
func (e *Engine) Disapprove(user, agent [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	vaults := e.newVaultSet()
	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	delete(v.Agents, agent)
	return vaults.persist()
}
