package staking

import (
	"errors"
	"math/big"

	"lmcv/core/events"
	"lmcv/fixed"
)

var (
	errNilState = errors.New("staking engine: state not configured")
	errNilAuth  = errors.New("staking engine: authority not configured")

	// ErrOverStakedLimit signals a stake pushing the vault past its cap.
	ErrOverStakedLimit = errors.New("staking engine: staked amount limit exceeded")
	// ErrNoStakedAmount signals a reward injection into an empty vault.
	ErrNoStakedAmount = errors.New("staking engine: no staked amount")
	// ErrUnknownRewardToken signals an unregistered reward token symbol.
	ErrUnknownRewardToken = errors.New("staking engine: unknown reward token")
	// ErrInsufficientBalance signals a stakeable balance too small to debit.
	ErrInsufficientBalance = errors.New("staking engine: insufficient balance")
	// ErrNotAdmin signals a privileged call from a non-admin address.
	ErrNotAdmin = errors.New("staking engine: caller is not an admin")
	// ErrInvalidAmount signals a malformed amount or ratio.
	ErrInvalidAmount = errors.New("staking engine: invalid amount")
)

// engineState is the persistence surface the staking vault requires. Reads
// must return deep copies (or nil when absent).
type engineState interface {
	StakingPosition(owner [20]byte) (*Position, error)
	PutStakingPosition(*Position) error
	StakingGlobals() (*Globals, error)
	PutStakingGlobals(*Globals) error
}

// authority answers admin checks; the vault engine's admin set is reused so
// join adapters and operators are rely'd in one place.
type authority interface {
	IsAdmin(addr [20]byte) (bool, error)
}

// Engine is the staking vault: reward-per-share accounting over a stakeable
// token, minting a staked share per the configured ratio. Pending rewards are
// realized into the withdrawable balance on every stake mutation, so a
// zero-delta stake is the claim operation.
type Engine struct {
	state   engineState
	auth    authority
	emitter events.Emitter
}

// NewEngine constructs an engine with a no-op event emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority wires the engine to the admin set.
func (e *Engine) SetAuthority(auth authority) { e.auth = auth }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.auth == nil {
		return errNilAuth
	}
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	ok, err := e.auth.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAdmin
	}
	return nil
}

func (e *Engine) loadGlobals() (*Globals, error) {
	g, err := e.state.StakingGlobals()
	if err != nil {
		return nil, err
	}
	if g == nil {
		g = &Globals{}
	}
	g.ensureDefaults()
	return g, nil
}

func (e *Engine) loadPosition(owner [20]byte) (*Position, error) {
	p, err := e.state.StakingPosition(owner)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &Position{Owner: owner}
	}
	p.ensureDefaults()
	return p, nil
}

// SetStakedMintRatio sets the Ray ratio of staked share minted per locked
// stakeable unit. Admin only.
func (e *Engine) SetStakedMintRatio(caller [20]byte, ratio *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if ratio == nil || ratio.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	g.StakedMintRatio = new(big.Int).Set(ratio)
	return e.state.PutStakingGlobals(g)
}

// SetStakedAmountLimit caps the total locked stakeable amount. Zero removes
// the cap. Admin only.
func (e *Engine) SetStakedAmountLimit(caller [20]byte, limit *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if limit == nil || limit.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	g.StakedAmountLimit = new(big.Int).Set(limit)
	return e.state.PutStakingGlobals(g)
}

// RegisterRewardToken adds a reward token symbol to the vault. Admin only.
// Registering an existing symbol is a no-op.
func (e *Engine) RegisterRewardToken(caller [20]byte, symbol string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	if _, ok := g.Rewards[symbol]; ok {
		return nil
	}
	g.RewardTokens = append(g.RewardTokens, symbol)
	g.Rewards[symbol] = &RewardToken{
		Symbol:            symbol,
		TotalRewardAmount: big.NewInt(0),
		AccPerShare:       big.NewInt(0),
	}
	return e.state.PutStakingGlobals(g)
}

// PushStakeable credits deposited stakeable token to a user's unlocked
// balance. Called by the join adapter, which must be rely'd.
func (e *Engine) PushStakeable(caller, user [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	p, err := e.loadPosition(user)
	if err != nil {
		return err
	}
	p.UnlockedStakeable = new(big.Int).Add(p.UnlockedStakeable, amount)
	return e.state.PutStakingPosition(p)
}

// PullStakeable debits a user's unlocked stakeable balance ahead of releasing
// the external token. Admin only.
func (e *Engine) PullStakeable(caller, user [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	p, err := e.loadPosition(user)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(p.UnlockedStakeable, amount)
	if remaining.Sign() < 0 {
		return ErrInsufficientBalance
	}
	p.UnlockedStakeable = remaining
	return e.state.PutStakingPosition(p)
}

// Stake locks (positive delta) or unlocks (negative delta) stakeable token.
// Pending rewards for every reward token are realized into the withdrawable
// balance first and the reward-debt snapshots reset after, so Stake(user, 0)
// claims without changing the stake.
func (e *Engine) Stake(user [20]byte, delta *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if delta == nil {
		delta = big.NewInt(0)
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	p, err := e.loadPosition(user)
	if err != nil {
		return err
	}
	e.realizeRewards(g, p)

	if delta.Sign() != 0 {
		newLocked := new(big.Int).Add(p.LockedStakeable, delta)
		newUnlocked := new(big.Int).Sub(p.UnlockedStakeable, delta)
		if newLocked.Sign() < 0 || newUnlocked.Sign() < 0 {
			return ErrInsufficientBalance
		}
		g.TotalLocked = new(big.Int).Add(g.TotalLocked, delta)
		if delta.Sign() > 0 && g.StakedAmountLimit.Sign() > 0 && g.TotalLocked.Cmp(g.StakedAmountLimit) > 0 {
			return ErrOverStakedLimit
		}
		newShare := fixed.MulWadRay(newLocked, g.StakedMintRatio)
		g.TotalShare = new(big.Int).Add(new(big.Int).Sub(g.TotalShare, p.StakedShare), newShare)
		p.LockedStakeable = newLocked
		p.UnlockedStakeable = newUnlocked
		p.StakedShare = newShare
	}

	e.resetRewardDebt(g, p)
	if err := e.state.PutStakingPosition(p); err != nil {
		return err
	}
	if err := e.state.PutStakingGlobals(g); err != nil {
		return err
	}
	e.emit(events.StakeChanged{
		User:   user,
		Delta:  new(big.Int).Set(delta),
		Staked: new(big.Int).Set(p.LockedStakeable),
	})
	return nil
}

// PushRewards injects reward token into the vault, spreading it over the
// current stakers by bumping the per-share accumulator. Fails on an empty
// vault so the injection cannot be lost. Admin only.
func (e *Engine) PushRewards(caller [20]byte, symbol string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	token, ok := g.Rewards[symbol]
	if !ok {
		return ErrUnknownRewardToken
	}
	stakedWad := fixed.RadToWad(g.TotalShare)
	if stakedWad.Sign() == 0 {
		return ErrNoStakedAmount
	}
	token.TotalRewardAmount = new(big.Int).Add(token.TotalRewardAmount, amount)
	token.AccPerShare = new(big.Int).Add(token.AccPerShare, fixed.RayDiv(amount, stakedWad))
	if err := e.state.PutStakingGlobals(g); err != nil {
		return err
	}
	e.emit(events.RewardsInjected{Token: symbol, Amount: new(big.Int).Set(amount)})
	return nil
}

// PullRewards debits realized rewards ahead of paying the external token out.
// Admin only.
func (e *Engine) PullRewards(caller, user [20]byte, symbol string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	p, err := e.loadPosition(user)
	if err != nil {
		return err
	}
	have := p.Withdrawable[symbol]
	if have == nil || have.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	p.Withdrawable[symbol] = new(big.Int).Sub(have, amount)
	return e.state.PutStakingPosition(p)
}

// LiquidationWithdraw unwinds staked share seized together with the staked
// derivative token: the liquidated user's stake shrinks by the share amount
// and the freed stakeable lands unlocked on the caller, the new holder of the
// derivative. The liquidated user keeps rewards realized up to this point.
// Admin only.
func (e *Engine) LiquidationWithdraw(caller, liquidated [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	g, err := e.loadGlobals()
	if err != nil {
		return err
	}
	p, err := e.loadPosition(liquidated)
	if err != nil {
		return err
	}
	if p.StakedShare.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	e.realizeRewards(g, p)

	lockedDelta := fixed.DivRadRay(amount, g.StakedMintRatio)
	if lockedDelta.Cmp(p.LockedStakeable) > 0 {
		lockedDelta = new(big.Int).Set(p.LockedStakeable)
	}
	p.StakedShare = new(big.Int).Sub(p.StakedShare, amount)
	p.LockedStakeable = new(big.Int).Sub(p.LockedStakeable, lockedDelta)
	g.TotalShare = new(big.Int).Sub(g.TotalShare, amount)
	g.TotalLocked = new(big.Int).Sub(g.TotalLocked, lockedDelta)
	e.resetRewardDebt(g, p)

	recipient, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	recipient.UnlockedStakeable = new(big.Int).Add(recipient.UnlockedStakeable, lockedDelta)

	if err := e.state.PutStakingPosition(p); err != nil {
		return err
	}
	if err := e.state.PutStakingPosition(recipient); err != nil {
		return err
	}
	return e.state.PutStakingGlobals(g)
}

// CheckOwnership reports whether the user's combined wallet and staked claim
// on the stakeable token covers the given Rad share amount. Gates re-locking
// of the staked derivative as collateral elsewhere.
func (e *Engine) CheckOwnership(user [20]byte, amount *big.Int) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return true, nil
	}
	g, err := e.loadGlobals()
	if err != nil {
		return false, err
	}
	p, err := e.loadPosition(user)
	if err != nil {
		return false, err
	}
	combined := new(big.Int).Add(p.LockedStakeable, p.UnlockedStakeable)
	claim := fixed.MulWadRay(combined, g.StakedMintRatio)
	return claim.Cmp(amount) >= 0, nil
}

// GetPosition returns a copy of a user's staking position.
func (e *Engine) GetPosition(owner [20]byte) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPosition(owner)
}

// GetGlobals returns a copy of the staking globals with defaults applied.
func (e *Engine) GetGlobals() (*Globals, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadGlobals()
}

// PendingRewards returns the not-yet-realized reward amount for a user and
// token on top of their withdrawable balance.
func (e *Engine) PendingRewards(user [20]byte, symbol string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	g, err := e.loadGlobals()
	if err != nil {
		return nil, err
	}
	token, ok := g.Rewards[symbol]
	if !ok {
		return nil, ErrUnknownRewardToken
	}
	p, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	return e.pending(p, token), nil
}

func (e *Engine) pending(p *Position, token *RewardToken) *big.Int {
	debt := p.RewardDebt[token.Symbol]
	if debt == nil {
		debt = big.NewInt(0)
	}
	delta := new(big.Int).Sub(token.AccPerShare, debt)
	if delta.Sign() <= 0 || p.StakedShare.Sign() == 0 {
		return big.NewInt(0)
	}
	shareWad := fixed.RadToWad(p.StakedShare)
	return fixed.RayMul(shareWad, delta)
}

func (e *Engine) realizeRewards(g *Globals, p *Position) {
	for _, symbol := range g.RewardTokens {
		token := g.Rewards[symbol]
		if token == nil {
			continue
		}
		earned := e.pending(p, token)
		if earned.Sign() > 0 {
			have := p.Withdrawable[symbol]
			if have == nil {
				have = big.NewInt(0)
			}
			p.Withdrawable[symbol] = new(big.Int).Add(have, earned)
		}
	}
}

func (e *Engine) resetRewardDebt(g *Globals, p *Position) {
	for _, symbol := range g.RewardTokens {
		token := g.Rewards[symbol]
		if token == nil {
			continue
		}
		p.RewardDebt[symbol] = new(big.Int).Set(token.AccPerShare)
	}
}
