package vault

import (
	"math/big"

	"lmcv/fixed"
)

// MoveStable transfers internal stable-token credit between vaults. The
// caller must be the source owner or a consented agent.
func (e *Engine) MoveStable(caller, from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	vaults := e.newVaultSet()
	src, err := vaults.get(from)
	if err != nil {
		return err
	}
	if err := e.requireConsent(caller, from, src); err != nil {
		return err
	}
	if src.StableBalance.Cmp(amount) < 0 {
		return ErrInsufficientStableToken
	}
	dst, err := vaults.get(to)
	if err != nil {
		return err
	}
	src.StableBalance = new(big.Int).Sub(src.StableBalance, amount)
	dst.StableBalance = new(big.Int).Add(dst.StableBalance, amount)
	return vaults.persist()
}

// Mint credits freshly issued stable token to a vault. Only authorized token
// pipes and join adapters, registered through Administrate, may call it. The
// amount is Wad scale and is lifted to Rad internally.
func (e *Engine) Mint(caller, user [20]byte, amount *big.Int) error {
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
	rad := fixed.WadToRad(amount)
	vaults := e.newVaultSet()
	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	v.StableBalance = new(big.Int).Add(v.StableBalance, rad)
	g.TotalStable = new(big.Int).Add(g.TotalStable, rad)
	if err := vaults.persist(); err != nil {
		return err
	}
	return e.state.PutGlobals(g)
}

// Burn destroys stable token held by a vault. The privileged counterpart of
// Mint, used when the external token is redeemed or teleported away.
func (e *Engine) Burn(caller, user [20]byte, amount *big.Int) error {
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
	rad := fixed.WadToRad(amount)
	vaults := e.newVaultSet()
	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	if v.StableBalance.Cmp(rad) < 0 {
		return ErrInsufficientStableToken
	}
	v.StableBalance = new(big.Int).Sub(v.StableBalance, rad)
	g.TotalStable = new(big.Int).Sub(g.TotalStable, rad)
	if err := vaults.persist(); err != nil {
		return err
	}
	return e.state.PutGlobals(g)
}

// Inflate mints unbacked stable token to a recipient while recording an equal
// protocol deficit against a beneficiary account. Used to settle liquidation
// shortfalls against auction proceeds.
func (e *Engine) Inflate(caller, debtor, recipient [20]byte, amount *big.Int) error {
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
	deficit, err := e.GetDeficit(debtor)
	if err != nil {
		return err
	}
	vaults := e.newVaultSet()
	v, err := vaults.get(recipient)
	if err != nil {
		return err
	}
	v.StableBalance = new(big.Int).Add(v.StableBalance, amount)
	g.TotalStable = new(big.Int).Add(g.TotalStable, amount)
	g.TotalDeficit = new(big.Int).Add(g.TotalDeficit, amount)
	if err := e.state.PutDeficit(debtor, new(big.Int).Add(deficit, amount)); err != nil {
		return err
	}
	if err := vaults.persist(); err != nil {
		return err
	}
	return e.state.PutGlobals(g)
}

// Deflate burns the caller's own stable token against their recorded protocol
// deficit, retiring both sides at once.
func (e *Engine) Deflate(caller [20]byte, amount *big.Int) error {
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
	deficit, err := e.GetDeficit(caller)
	if err != nil {
		return err
	}
	if deficit.Cmp(amount) < 0 {
		return ErrInsufficientDeficit
	}
	vaults := e.newVaultSet()
	v, err := vaults.get(caller)
	if err != nil {
		return err
	}
	if v.StableBalance.Cmp(amount) < 0 {
		return ErrInsufficientStableToken
	}
	v.StableBalance = new(big.Int).Sub(v.StableBalance, amount)
	g.TotalStable = new(big.Int).Sub(g.TotalStable, amount)
	g.TotalDeficit = new(big.Int).Sub(g.TotalDeficit, amount)
	if err := e.state.PutDeficit(caller, new(big.Int).Sub(deficit, amount)); err != nil {
		return err
	}
	if err := vaults.persist(); err != nil {
		return err
	}
	return e.state.PutGlobals(g)
}
