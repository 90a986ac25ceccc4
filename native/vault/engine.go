package vault

import (
	"errors"
	"math/big"
	"time"

	"lmcv/core/events"
	"lmcv/fixed"
)

var (
	errNilState = errors.New("vault engine: state not configured")

	// ErrMismatchedLengths signals symbol and amount slices of unequal length.
	ErrMismatchedLengths = errors.New("vault engine: mismatched symbol and amount lengths")
	// ErrUnknownCollateral signals an operation on an unregistered symbol.
	ErrUnknownCollateral = errors.New("vault engine: unknown collateral type")
	// ErrNotConsented signals a caller operating a vault without approval.
	ErrNotConsented = errors.New("vault engine: caller not consented by vault owner")
	// ErrNotAdmin signals a privileged call from a non-admin address.
	ErrNotAdmin = errors.New("vault engine: caller is not an admin")
	// ErrNotArchAdmin signals an arch-admin transfer from the wrong address.
	ErrNotArchAdmin = errors.New("vault engine: caller is not the arch admin")
	// ErrCannotRemoveArchAdminPrivilege guards the last administrator.
	ErrCannotRemoveArchAdminPrivilege = errors.New("vault engine: cannot remove arch admin privilege")
	// ErrBelowDustLevel signals a nonzero locked balance below the dust floor.
	ErrBelowDustLevel = errors.New("vault engine: locked amount below dust level")
	// ErrLockedAmountLimitExceeded signals the per-symbol global lock ceiling.
	ErrLockedAmountLimitExceeded = errors.New("vault engine: locked amount limit exceeded")
	// ErrCreditLimitExceeded signals a position outside its credit limit.
	ErrCreditLimitExceeded = errors.New("vault engine: credit limit exceeded")
	// ErrDebtCeilingExceeded signals the protocol-wide debt ceiling.
	ErrDebtCeilingExceeded = errors.New("vault engine: protocol debt ceiling exceeded")
	// ErrInsufficientStableToken signals a stable balance too small to burn.
	ErrInsufficientStableToken = errors.New("vault engine: insufficient stable token")
	// ErrInsufficientBalance signals a collateral balance too small to debit.
	ErrInsufficientBalance = errors.New("vault engine: insufficient balance")
	// ErrInsufficientDeficit signals a deflate above the caller's deficit.
	ErrInsufficientDeficit = errors.New("vault engine: insufficient protocol deficit")
	// ErrInvalidAmount signals a negative or otherwise malformed amount.
	ErrInvalidAmount = errors.New("vault engine: invalid amount")
)

// engineState is the persistence surface the vault engine requires. Reads
// must return deep copies (or nil when absent) so a failed operation leaves
// no partial mutation behind.
type engineState interface {
	Globals() (*Globals, error)
	PutGlobals(*Globals) error
	CollateralType(symbol string) (*CollateralType, error)
	PutCollateralType(*CollateralType) error
	Vault(owner [20]byte) (*Vault, error)
	PutVault(*Vault) error
	Deficit(addr [20]byte) (*big.Int, error)
	PutDeficit(addr [20]byte, amount *big.Int) error
}

// Engine is the locked multi-collateral vault core: the collateral ledger and
// debt accounting for the stable token. Every public operation either fully
// commits or leaves state untouched.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs an engine with a no-op event emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for interest accrual. Primarily
// for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
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

// vaultSet deduplicates vault loads within one operation so aliased addresses
// (user == treasury, owner == recipient) mutate a single object.
type vaultSet struct {
	engine *Engine
	loaded map[[20]byte]*Vault
	order  [][20]byte
}

func (e *Engine) newVaultSet() *vaultSet {
	return &vaultSet{engine: e, loaded: make(map[[20]byte]*Vault)}
}

func (s *vaultSet) get(owner [20]byte) (*Vault, error) {
	if v, ok := s.loaded[owner]; ok {
		return v, nil
	}
	v, err := s.engine.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = &Vault{Owner: owner}
	}
	v.ensureMaps()
	s.loaded[owner] = v
	s.order = append(s.order, owner)
	return v, nil
}

func (s *vaultSet) persist() error {
	for _, owner := range s.order {
		if err := s.engine.state.PutVault(s.loaded[owner]); err != nil {
			return err
		}
	}
	return nil
}

// collateralSet deduplicates collateral-type loads the same way.
type collateralSet struct {
	engine *Engine
	loaded map[string]*CollateralType
	order  []string
}

func (e *Engine) newCollateralSet() *collateralSet {
	return &collateralSet{engine: e, loaded: make(map[string]*CollateralType)}
}

func (s *collateralSet) get(symbol string) (*CollateralType, error) {
	if ct, ok := s.loaded[symbol]; ok {
		return ct, nil
	}
	ct, err := s.engine.state.CollateralType(symbol)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, ErrUnknownCollateral
	}
	if ct.LockedAmount == nil {
		ct.LockedAmount = big.NewInt(0)
	}
	s.loaded[symbol] = ct
	s.order = append(s.order, symbol)
	return ct, nil
}

func (s *collateralSet) persist() error {
	for _, symbol := range s.order {
		if err := s.engine.state.PutCollateralType(s.loaded[symbol]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadGlobals() (*Globals, error) {
	g, err := e.state.Globals()
	if err != nil {
		return nil, err
	}
	if g == nil {
		g = &Globals{}
	}
	g.ensureDefaults()
	return g, nil
}

func (e *Engine) requireConsent(caller, owner [20]byte, v *Vault) error {
	if caller == owner {
		return nil
	}
	if v != nil && v.Agents[caller] {
		return nil
	}
	return ErrNotConsented
}

func (e *Engine) requireAdmin(g *Globals, caller [20]byte) error {
	if g.Admins[caller] {
		return nil
	}
	return ErrNotAdmin
}

// Loan locks or unlocks collateral and draws new stable-token debt in one
// atomic step. Collateral deltas are signed Wads: positive locks from the
// unlocked balance, negative unlocks back to it. DeltaDebt must be
// non-negative; the minted value is deltaDebt times the accumulated rate,
// with the mint fee diverted to the treasury. The resulting position must sit
// within its credit limit and the protocol debt ceiling.
func (e *Engine) Loan(caller, user [20]byte, symbols []string, deltaCollateral []*big.Int, deltaDebt *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if len(symbols) != len(deltaCollateral) {
		return ErrMismatchedLengths
	}
	if deltaDebt == nil {
		deltaDebt = big.NewInt(0)
	}
	if deltaDebt.Sign() < 0 {
		return ErrInvalidAmount
	}

	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	vaults := e.newVaultSet()
	collateral := e.newCollateralSet()

	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	if err := e.requireConsent(caller, user, v); err != nil {
		return err
	}

	if err := e.applyCollateralDeltas(v, collateral, symbols, deltaCollateral); err != nil {
		return err
	}

	if deltaDebt.Sign() > 0 {
		v.NormalizedDebt = new(big.Int).Add(v.NormalizedDebt, deltaDebt)
		g.TotalNormalizedDebt = new(big.Int).Add(g.TotalNormalizedDebt, deltaDebt)

		minted := fixed.MulWadRay(deltaDebt, g.AccumulatedRate)
		fee := big.NewInt(0)
		if g.MintFee.Sign() > 0 && user != g.PSM {
			fee = fixed.RayMul(minted, g.MintFee)
		}
		if fee.Sign() > 0 {
			treasury, err := vaults.get(g.Treasury)
			if err != nil {
				return err
			}
			treasury.StableBalance = new(big.Int).Add(treasury.StableBalance, fee)
		}
		v.StableBalance = new(big.Int).Add(v.StableBalance, new(big.Int).Sub(minted, fee))
		g.TotalStable = new(big.Int).Add(g.TotalStable, minted)
	}

	if err := e.checkCreditLimit(v, collateral, g.AccumulatedRate); err != nil {
		return err
	}
	globalDebt := fixed.MulWadRay(g.TotalNormalizedDebt, g.AccumulatedRate)
	if globalDebt.Cmp(g.ProtocolDebtCeiling) > 0 {
		return ErrDebtCeilingExceeded
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

	e.emit(events.Loan{
		User:           user,
		Symbols:        append([]string(nil), symbols...),
		DeltaDebt:      copyBigInt(deltaDebt),
		NormalizedDebt: copyBigInt(v.NormalizedDebt),
	})
	return nil
}

// Repay burns stable token against normalized debt and releases collateral.
// Collateral amounts are non-negative Wads to unlock. The burn fails with
// ErrInsufficientStableToken when the vault's stable balance cannot cover
// deltaDebt at the current rate, and the remaining position must still sit
// within its credit limit.
func (e *Engine) Repay(caller, user [20]byte, symbols []string, deltaCollateral []*big.Int, deltaDebt *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if len(symbols) != len(deltaCollateral) {
		return ErrMismatchedLengths
	}
	if deltaDebt == nil {
		deltaDebt = big.NewInt(0)
	}
	if deltaDebt.Sign() < 0 {
		return ErrInvalidAmount
	}
	for _, amount := range deltaCollateral {
		if amount != nil && amount.Sign() < 0 {
			return ErrInvalidAmount
		}
	}

	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	vaults := e.newVaultSet()
	collateral := e.newCollateralSet()

	v, err := vaults.get(user)
	if err != nil {
		return err
	}
	if err := e.requireConsent(caller, user, v); err != nil {
		return err
	}

	if deltaDebt.Sign() > 0 {
		if deltaDebt.Cmp(v.NormalizedDebt) > 0 {
			return ErrInvalidAmount
		}
		owed := fixed.MulWadRay(deltaDebt, g.AccumulatedRate)
		if v.StableBalance.Cmp(owed) < 0 {
			return ErrInsufficientStableToken
		}
		v.StableBalance = new(big.Int).Sub(v.StableBalance, owed)
		v.NormalizedDebt = new(big.Int).Sub(v.NormalizedDebt, deltaDebt)
		g.TotalNormalizedDebt = new(big.Int).Sub(g.TotalNormalizedDebt, deltaDebt)
		g.TotalStable = new(big.Int).Sub(g.TotalStable, owed)
	}

	// Unlock side: negate the amounts and reuse the loan delta path.
	negated := make([]*big.Int, len(deltaCollateral))
	for i, amount := range deltaCollateral {
		if amount == nil {
			negated[i] = big.NewInt(0)
			continue
		}
		negated[i] = new(big.Int).Neg(amount)
	}
	if err := e.applyCollateralDeltas(v, collateral, symbols, negated); err != nil {
		return err
	}

	if err := e.checkCreditLimit(v, collateral, g.AccumulatedRate); err != nil {
		return err
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

	e.emit(events.Repay{
		User:           user,
		Symbols:        append([]string(nil), symbols...),
		DeltaDebt:      copyBigInt(deltaDebt),
		NormalizedDebt: copyBigInt(v.NormalizedDebt),
	})
	return nil
}

// applyCollateralDeltas moves signed Wad amounts between the unlocked and
// locked balances of a vault, enforcing dust floors and per-symbol lock
// ceilings, and keeping the global locked totals in step.
func (e *Engine) applyCollateralDeltas(v *Vault, collateral *collateralSet, symbols []string, deltas []*big.Int) error {
	for i, raw := range symbols {
		symbol, err := NormalizeSymbol(raw)
		if err != nil {
			return ErrUnknownCollateral
		}
		ct, err := collateral.get(symbol)
		if err != nil {
			return err
		}
		delta := deltas[i]
		if delta == nil || delta.Sign() == 0 {
			continue
		}

		newLocked := new(big.Int).Add(v.locked(symbol), delta)
		newUnlocked := new(big.Int).Sub(v.unlocked(symbol), delta)
		if newLocked.Sign() < 0 || newUnlocked.Sign() < 0 {
			return ErrInsufficientBalance
		}
		if newLocked.Sign() > 0 && ct.DustLevel != nil && newLocked.Cmp(ct.DustLevel) < 0 {
			return ErrBelowDustLevel
		}

		ct.LockedAmount = new(big.Int).Add(ct.LockedAmount, delta)
		if ct.LockedAmountLimit != nil && ct.LockedAmount.Cmp(ct.LockedAmountLimit) > 0 {
			return ErrLockedAmountLimitExceeded
		}

		v.setLocked(symbol, newLocked)
		v.setUnlocked(symbol, newUnlocked)
	}
	return nil
}

// checkCreditLimit verifies normalizedDebt * rate <= creditValue(vault). The
// comparison is inclusive: a position at exactly its limit is healthy.
func (e *Engine) checkCreditLimit(v *Vault, collateral *collateralSet, rate *big.Int) error {
	if v.NormalizedDebt.Sign() == 0 {
		return nil
	}
	credit, err := e.creditValueLocked(v, collateral)
	if err != nil {
		return err
	}
	debtValue := fixed.MulWadRay(v.NormalizedDebt, rate)
	if debtValue.Cmp(credit) > 0 {
		return ErrCreditLimitExceeded
	}
	return nil
}

// creditValueLocked sums locked collateral value weighted by credit ratio,
// in Rad, against the in-flight collateral set so mutated lock amounts are
// seen. Each symbol's ratio applies exactly once, leveraged or not.
func (e *Engine) creditValueLocked(v *Vault, collateral *collateralSet) (*big.Int, error) {
	total := big.NewInt(0)
	for _, symbol := range v.LockedList {
		ct, err := collateral.get(symbol)
		if err != nil {
			return nil, err
		}
		value := fixed.MulWadRay(v.locked(symbol), ct.SpotPrice)
		total.Add(total, fixed.RayMul(value, ct.CreditRatio))
	}
	return total, nil
}

// CreditValue returns the credit-weighted locked collateral value for a user
// in Rad. This is the right-hand side of the credit-limit comparison.
func (e *Engine) CreditValue(user [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	v, err := e.state.Vault(user)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return big.NewInt(0), nil
	}
	v.ensureMaps()
	return e.creditValueLocked(v, e.newCollateralSet())
}

// PortfolioValue returns the raw locked collateral value for a user in Rad,
// unweighted by credit ratios. Leveraged collateral can be excluded to view
// only the equity-backed part of the position.
func (e *Engine) PortfolioValue(user [20]byte, excludeLeveraged bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	v, err := e.state.Vault(user)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return big.NewInt(0), nil
	}
	v.ensureMaps()
	collateral := e.newCollateralSet()
	total := big.NewInt(0)
	for _, symbol := range v.LockedList {
		ct, err := collateral.get(symbol)
		if err != nil {
			return nil, err
		}
		if excludeLeveraged && ct.Leveraged {
			continue
		}
		total.Add(total, fixed.MulWadRay(v.locked(symbol), ct.SpotPrice))
	}
	return total, nil
}

// DebtValue returns normalizedDebt times the accumulated rate for a user, in
// Rad.
func (e *Engine) DebtValue(user [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return nil, err
	}
	v, err := e.state.Vault(user)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return big.NewInt(0), nil
	}
	v.ensureMaps()
	return fixed.MulWadRay(v.NormalizedDebt, g.AccumulatedRate), nil
}

// GetVault returns a copy of the stored vault, or an empty vault for an
// address that has never been touched.
func (e *Engine) GetVault(owner [20]byte) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	v, err := e.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = &Vault{Owner: owner}
	}
	v.ensureMaps()
	return v, nil
}

// GetCollateralType returns a copy of the registered collateral type, or
// ErrUnknownCollateral.
func (e *Engine) GetCollateralType(symbol string) (*CollateralType, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, ErrUnknownCollateral
	}
	ct, err := e.state.CollateralType(normalized)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, ErrUnknownCollateral
	}
	return ct, nil
}

// GetGlobals returns a copy of the protocol globals with defaults applied.
func (e *Engine) GetGlobals() (*Globals, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadGlobals()
}

// GetDeficit returns the protocol deficit recorded for a beneficiary.
func (e *Engine) GetDeficit(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	d, err := e.state.Deficit(addr)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return big.NewInt(0), nil
	}
	return d, nil
}

// IsAdmin reports whether an address holds admin privileges.
func (e *Engine) IsAdmin(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return false, err
	}
	return g.Admins[addr], nil
}
