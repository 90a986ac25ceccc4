package staking

import (
	"errors"
	"math/big"
	"testing"

	"lmcv/fixed"
)

type mockState struct {
	positions map[[20]byte]*Position
	globals   *Globals
}

func newMockState() *mockState {
	return &mockState{positions: make(map[[20]byte]*Position)}
}

func (s *mockState) StakingPosition(owner [20]byte) (*Position, error) {
	return s.positions[owner].Clone(), nil
}

func (s *mockState) PutStakingPosition(p *Position) error {
	s.positions[p.Owner] = p.Clone()
	return nil
}

func (s *mockState) StakingGlobals() (*Globals, error) { return s.globals.Clone(), nil }

func (s *mockState) PutStakingGlobals(g *Globals) error {
	s.globals = g.Clone()
	return nil
}

type mockAuthority struct {
	admins map[[20]byte]bool
}

func (a *mockAuthority) IsAdmin(addr [20]byte) (bool, error) { return a.admins[addr], nil }

func makeAddress(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

func wad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixed.Wad) }

var (
	admin   = makeAddress(0x01)
	userOne = makeAddress(0x10)
	userTwo = makeAddress(0x11)
)

const rewardSymbol = "RWD"

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	engine := NewEngine()
	state := newMockState()
	engine.SetState(state)
	engine.SetAuthority(&mockAuthority{admins: map[[20]byte]bool{admin: true}})
	if err := engine.SetStakedMintRatio(admin, new(big.Int).Set(fixed.Ray)); err != nil {
		t.Fatalf("set ratio: %v", err)
	}
	if err := engine.RegisterRewardToken(admin, rewardSymbol); err != nil {
		t.Fatalf("register reward: %v", err)
	}
	return engine, state
}

func stakeFor(t *testing.T, engine *Engine, user [20]byte, amount *big.Int) {
	t.Helper()
	if err := engine.PushStakeable(admin, user, amount); err != nil {
		t.Fatalf("push stakeable: %v", err)
	}
	if err := engine.Stake(user, amount); err != nil {
		t.Fatalf("stake: %v", err)
	}
}

func TestStakeAndUnstakeRoundTrip(t *testing.T) {
	engine, state := newTestEngine(t)
	stakeFor(t, engine, userOne, wad(100))

	p := state.positions[userOne]
	if p.LockedStakeable.Cmp(wad(100)) != 0 || p.UnlockedStakeable.Sign() != 0 {
		t.Fatalf("unexpected balances after stake: %+v", p)
	}
	if p.StakedShare.Cmp(fixed.MulWadRay(wad(100), fixed.Ray)) != 0 {
		t.Fatalf("unexpected share: %s", p.StakedShare)
	}
	if state.globals.TotalLocked.Cmp(wad(100)) != 0 {
		t.Fatalf("unexpected total locked: %s", state.globals.TotalLocked)
	}

	if err := engine.Stake(userOne, new(big.Int).Neg(wad(100))); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	p = state.positions[userOne]
	if p.LockedStakeable.Sign() != 0 || p.UnlockedStakeable.Cmp(wad(100)) != 0 {
		t.Fatalf("unexpected balances after unstake: %+v", p)
	}
	if state.globals.TotalLocked.Sign() != 0 || state.globals.TotalShare.Sign() != 0 {
		t.Fatalf("globals not unwound")
	}

	if err := engine.PullStakeable(admin, userOne, wad(100)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if state.positions[userOne].UnlockedStakeable.Sign() != 0 {
		t.Fatalf("round trip left a residue")
	}
}

func TestStakeValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Stake(userOne, wad(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected unlocked underflow, got %v", err)
	}
	stakeFor(t, engine, userOne, wad(10))
	if err := engine.Stake(userOne, new(big.Int).Neg(wad(11))); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected locked underflow, got %v", err)
	}
}

func TestStakedAmountLimit(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.SetStakedAmountLimit(admin, wad(100)); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if err := engine.PushStakeable(admin, userOne, wad(200)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := engine.Stake(userOne, wad(101)); !errors.Is(err, ErrOverStakedLimit) {
		t.Fatalf("expected limit error, got %v", err)
	}
	if err := engine.Stake(userOne, wad(100)); err != nil {
		t.Fatalf("stake at limit: %v", err)
	}
}

func TestRewardDistributionExactShares(t *testing.T) {
	engine, state := newTestEngine(t)
	stakeFor(t, engine, userOne, wad(800))
	stakeFor(t, engine, userTwo, wad(300))

	if err := engine.PushRewards(admin, rewardSymbol, wad(20)); err != nil {
		t.Fatalf("push rewards: %v", err)
	}

	// Zero-delta stake is the claim operation.
	if err := engine.Stake(userOne, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	want, _ := new(big.Int).SetString("14545454545454545454", 10)
	got := state.positions[userOne].Withdrawable[rewardSymbol]
	if got.Cmp(want) != 0 {
		t.Fatalf("user one reward: got %s want %s", got, want)
	}

	if err := engine.Stake(userTwo, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	wantTwo, _ := new(big.Int).SetString("5454545454545454545", 10)
	got = state.positions[userTwo].Withdrawable[rewardSymbol]
	if got.Cmp(wantTwo) != 0 {
		t.Fatalf("user two reward: got %s want %s", got, wantTwo)
	}

	// A second claim realizes nothing further.
	if err := engine.Stake(userOne, nil); err != nil {
		t.Fatalf("second claim: %v", err)
	}
	got = state.positions[userOne].Withdrawable[rewardSymbol]
	if got.Cmp(want) != 0 {
		t.Fatalf("double counted rewards: %s", got)
	}
}

func TestRewardsRealizedBeforeStakeMutation(t *testing.T) {
	engine, state := newTestEngine(t)
	stakeFor(t, engine, userOne, wad(100))
	if err := engine.PushRewards(admin, rewardSymbol, wad(10)); err != nil {
		t.Fatalf("push rewards: %v", err)
	}
	// Unstaking everything must still bank the rewards earned at full stake.
	if err := engine.Stake(userOne, new(big.Int).Neg(wad(100))); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	got := state.positions[userOne].Withdrawable[rewardSymbol]
	if got.Cmp(wad(10)) != 0 {
		t.Fatalf("rewards lost on unstake: %s", got)
	}
	if err := engine.PullRewards(admin, userOne, rewardSymbol, wad(10)); err != nil {
		t.Fatalf("pull rewards: %v", err)
	}
	if err := engine.PullRewards(admin, userOne, rewardSymbol, wad(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected drained rewards, got %v", err)
	}
}

func TestPushRewardsGuards(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.PushRewards(admin, rewardSymbol, wad(20)); !errors.Is(err, ErrNoStakedAmount) {
		t.Fatalf("expected empty-vault guard, got %v", err)
	}
	stakeFor(t, engine, userOne, wad(100))
	if err := engine.PushRewards(userOne, rewardSymbol, wad(20)); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected admin gate, got %v", err)
	}
	if err := engine.PushRewards(admin, "NOPE", wad(20)); !errors.Is(err, ErrUnknownRewardToken) {
		t.Fatalf("expected unknown token, got %v", err)
	}
}

func TestLiquidationWithdraw(t *testing.T) {
	engine, state := newTestEngine(t)
	stakeFor(t, engine, userOne, wad(100))

	seized := fixed.MulWadRay(wad(40), fixed.Ray)
	if err := engine.LiquidationWithdraw(admin, userOne, seized); err != nil {
		t.Fatalf("liquidation withdraw: %v", err)
	}
	p := state.positions[userOne]
	if p.LockedStakeable.Cmp(wad(60)) != 0 {
		t.Fatalf("liquidated stake: %s", p.LockedStakeable)
	}
	if p.UnlockedStakeable.Sign() != 0 {
		t.Fatalf("liquidated user must not be re-credited")
	}
	if state.positions[admin].UnlockedStakeable.Cmp(wad(40)) != 0 {
		t.Fatalf("caller not credited: %s", state.positions[admin].UnlockedStakeable)
	}
	if state.globals.TotalLocked.Cmp(wad(60)) != 0 {
		t.Fatalf("global total not reduced: %s", state.globals.TotalLocked)
	}

	over := fixed.MulWadRay(wad(61), fixed.Ray)
	if err := engine.LiquidationWithdraw(admin, userOne, over); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected share underflow, got %v", err)
	}
}

func TestCheckOwnership(t *testing.T) {
	engine, _ := newTestEngine(t)
	stakeFor(t, engine, userOne, wad(70))
	if err := engine.PushStakeable(admin, userOne, wad(30)); err != nil {
		t.Fatalf("push: %v", err)
	}

	full := fixed.MulWadRay(wad(100), fixed.Ray)
	ok, err := engine.CheckOwnership(userOne, full)
	if err != nil || !ok {
		t.Fatalf("expected combined claim to cover, ok=%v err=%v", ok, err)
	}
	over := fixed.MulWadRay(wad(101), fixed.Ray)
	ok, err = engine.CheckOwnership(userOne, over)
	if err != nil || ok {
		t.Fatalf("expected claim exceeded, ok=%v err=%v", ok, err)
	}
}
