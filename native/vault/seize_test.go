package vault

import (
	"errors"
	"math/big"
	"testing"
)

func TestSeizeMovesCollateralAndBooksDeficit(t *testing.T) {
	engine, state := newTestEngine(t)
	openStandardPosition(t, engine, alice)

	liquidator := makeAddress(0x30)
	deficitSink := makeAddress(0x31)
	symbols := []string{"FOO", "BAR"}
	amounts := []*big.Int{wad(10), wad(200)}
	if err := engine.Seize(admin, symbols, amounts, wad(100), alice, liquidator, deficitSink); err != nil {
		t.Fatalf("seize: %v", err)
	}

	owner := state.vaults[alice]
	if owner.Locked["FOO"].Cmp(wad(40)) != 0 || owner.Locked["BAR"].Cmp(wad(600)) != 0 {
		t.Fatalf("unexpected remaining locked: %s FOO, %s BAR", owner.Locked["FOO"], owner.Locked["BAR"])
	}
	if owner.NormalizedDebt.Cmp(wad(400)) != 0 {
		t.Fatalf("unexpected remaining debt: %s", owner.NormalizedDebt)
	}
	taker := state.vaults[liquidator]
	if taker.Unlocked["FOO"].Cmp(wad(10)) != 0 || taker.Unlocked["BAR"].Cmp(wad(200)) != 0 {
		t.Fatalf("collateral did not land unlocked on the recipient")
	}
	if state.collateral["BAR"].LockedAmount.Cmp(wad(600)) != 0 {
		t.Fatalf("global locked total not reduced: %s", state.collateral["BAR"].LockedAmount)
	}

	// Deficit is booked at the current debt value, rate 1.0 here.
	deficit, err := engine.GetDeficit(deficitSink)
	if err != nil {
		t.Fatalf("deficit: %v", err)
	}
	if deficit.Cmp(rad(100)) != 0 {
		t.Fatalf("unexpected deficit: %s", deficit)
	}
	if state.globals.TotalDeficit.Cmp(rad(100)) != 0 {
		t.Fatalf("unexpected total deficit: %s", state.globals.TotalDeficit)
	}
	if state.globals.TotalNormalizedDebt.Cmp(wad(400)) != 0 {
		t.Fatalf("unexpected total debt: %s", state.globals.TotalNormalizedDebt)
	}
}

func TestSeizeAtCurrentRate(t *testing.T) {
	engine, _ := newTestEngine(t)
	openStandardPosition(t, engine, alice)
	if err := engine.UpdateRate(admin, rayPct(10)); err != nil {
		t.Fatalf("update rate: %v", err)
	}
	sink := makeAddress(0x31)
	if err := engine.Seize(admin, nil, nil, wad(100), alice, sink, sink); err != nil {
		t.Fatalf("seize: %v", err)
	}
	// 100 debt at rate 1.10 books 110 rad of deficit.
	deficit, err := engine.GetDeficit(sink)
	if err != nil {
		t.Fatalf("deficit: %v", err)
	}
	if deficit.Cmp(rad(110)) != 0 {
		t.Fatalf("unexpected deficit at rate 1.1: %s", deficit)
	}
}

func TestSeizeIgnoresCreditAndDust(t *testing.T) {
	engine, state := newTestEngine(t)
	openStandardPosition(t, engine, alice)
	sink := makeAddress(0x31)

	// Leave a locked sliver far below the dust level; seizure does not care.
	sliver := new(big.Int).Sub(wad(50), big.NewInt(1))
	if err := engine.Seize(admin, []string{"FOO"}, []*big.Int{sliver}, nil, alice, sink, sink); err != nil {
		t.Fatalf("seize: %v", err)
	}
	if state.vaults[alice].Locked["FOO"].Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("unexpected remaining sliver: %s", state.vaults[alice].Locked["FOO"])
	}
}

func TestSeizeBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	openStandardPosition(t, engine, alice)
	sink := makeAddress(0x31)

	if err := engine.Seize(alice, nil, nil, wad(1), alice, sink, sink); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected admin gate, got %v", err)
	}
	err := engine.Seize(admin, []string{"FOO"}, []*big.Int{wad(51)}, nil, alice, sink, sink)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected over-seize rejection, got %v", err)
	}
	err = engine.Seize(admin, nil, nil, wad(501), alice, sink, sink)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected debt over-seize rejection, got %v", err)
	}
}

func TestInflateAndDeflate(t *testing.T) {
	engine, state := newTestEngine(t)
	recipient := makeAddress(0x32)
	debtor := makeAddress(0x33)

	if err := engine.Inflate(admin, debtor, recipient, rad(40)); err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if state.vaults[recipient].StableBalance.Cmp(rad(40)) != 0 {
		t.Fatalf("unexpected inflated balance: %s", state.vaults[recipient].StableBalance)
	}
	deficit, _ := engine.GetDeficit(debtor)
	if deficit.Cmp(rad(40)) != 0 {
		t.Fatalf("unexpected debtor deficit: %s", deficit)
	}
	if state.globals.TotalDeficit.Cmp(rad(40)) != 0 || state.globals.TotalStable.Cmp(rad(40)) != 0 {
		t.Fatalf("inflate must grow both sides of the balance sheet")
	}

	// The debtor cancels part of the deficit by burning its own stable.
	if err := engine.MoveStable(recipient, recipient, debtor, rad(30)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := engine.Deflate(debtor, rad(30)); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	deficit, _ = engine.GetDeficit(debtor)
	if deficit.Cmp(rad(10)) != 0 {
		t.Fatalf("unexpected remaining deficit: %s", deficit)
	}
	if state.globals.TotalDeficit.Cmp(rad(10)) != 0 || state.globals.TotalStable.Cmp(rad(10)) != 0 {
		t.Fatalf("deflate must shrink both sides of the balance sheet")
	}

	if err := engine.Deflate(debtor, rad(20)); !errors.Is(err, ErrInsufficientDeficit) {
		t.Fatalf("expected deficit underflow, got %v", err)
	}
}
