package vault

import (
	"errors"
	"math/big"
	"testing"

	"lmcv/fixed"
)

const secondsPerYear = 365 * 24 * 60 * 60

// Per-second compounding factors. The positive one carries a 5% APR split
// evenly across the year's seconds, so compounding lands strictly above 1.05;
// the negative one decays roughly 5.5%.
var (
	ratePlusFivePercent = new(big.Int).Add(new(big.Int).Set(fixed.Ray), big.NewInt(1585489599188229325))
	rateMinusSixPercent = new(big.Int).Sub(new(big.Int).Set(fixed.Ray), big.NewInt(1800000000000000000))
)

func TestAccrueInterestCompoundsOverAYear(t *testing.T) {
	engine, state := newTestEngine(t)
	var now int64 = 1_700_000_000
	engine.SetNowFunc(func() int64 { return now })
	if err := engine.SetRatePerSecond(admin, ratePlusFivePercent); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := engine.AccrueInterest(); err != nil {
		t.Fatalf("first accrual: %v", err)
	}
	now += secondsPerYear
	if err := engine.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	rate := state.globals.AccumulatedRate
	if rate.Cmp(rayPct(105)) <= 0 {
		t.Fatalf("per-second compounding must beat simple 5%% interest, got %s", rate)
	}
	if rate.Cmp(rayPct(106)) >= 0 {
		t.Fatalf("expected roughly 5%% after a year, got %s", rate)
	}
	if state.globals.LastAccrual != now {
		t.Fatalf("accrual timestamp not advanced")
	}
}

func TestAccrueInterestNegativeRate(t *testing.T) {
	engine, state := newTestEngine(t)
	var now int64 = 1_700_000_000
	engine.SetNowFunc(func() int64 { return now })
	if err := engine.SetRatePerSecond(admin, rateMinusSixPercent); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := engine.AccrueInterest(); err != nil {
		t.Fatalf("first accrual: %v", err)
	}
	now += secondsPerYear
	if err := engine.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	rate := state.globals.AccumulatedRate
	if rate.Cmp(rayPct(95)) >= 0 || rate.Cmp(rayPct(90)) <= 0 {
		t.Fatalf("expected mild decay below 0.95, got %s", rate)
	}
}

func TestAccrueInterestNoopWhenFlat(t *testing.T) {
	engine, state := newTestEngine(t)
	var now int64 = 1_700_000_000
	engine.SetNowFunc(func() int64 { return now })
	if err := engine.AccrueInterest(); err != nil {
		t.Fatalf("first accrual: %v", err)
	}
	now += 3600
	if err := engine.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if state.globals.AccumulatedRate.Cmp(fixed.Ray) != 0 {
		t.Fatalf("rate drifted at the identity factor: %s", state.globals.AccumulatedRate)
	}
	if state.globals.LastAccrual != now {
		t.Fatalf("timestamp must still advance")
	}
}

func TestUpdateRateRevaluesDebtAndPaysTreasury(t *testing.T) {
	engine, state := newTestEngine(t)
	openStandardPosition(t, engine, alice)

	// +0.05 ray against 500 normalized debt accrues 25 rad to the treasury.
	delta := rayPct(5)
	if err := engine.UpdateRate(admin, delta); err != nil {
		t.Fatalf("update rate: %v", err)
	}
	expected := new(big.Int).Add(fixed.Ray, rayPct(5))
	if state.globals.AccumulatedRate.Cmp(expected) != 0 {
		t.Fatalf("unexpected accumulated rate: %s", state.globals.AccumulatedRate)
	}
	if got := state.vaults[treasury].StableBalance; got.Cmp(radPct(2500)) != 0 {
		t.Fatalf("unexpected treasury revenue: %s", got)
	}
	if got := state.globals.TotalStable; got.Cmp(radPct(52_500)) != 0 {
		t.Fatalf("total stable must include interest: %s", got)
	}

	// Debt value of the borrower scales with the multiplier.
	debt, err := engine.DebtValue(alice)
	if err != nil {
		t.Fatalf("debt value: %v", err)
	}
	if debt.Cmp(radPct(52_500)) != 0 {
		t.Fatalf("unexpected debt value: %s", debt)
	}
}

func TestUpdateRateNegativeDeltaChargesTreasury(t *testing.T) {
	engine, state := newTestEngine(t)
	openStandardPosition(t, engine, alice)
	if err := engine.UpdateRate(admin, new(big.Int).Neg(rayPct(5))); err != nil {
		t.Fatalf("update rate: %v", err)
	}
	if got := state.vaults[treasury].StableBalance; got.Cmp(new(big.Int).Neg(radPct(2500))) != 0 {
		t.Fatalf("expected treasury charged, got %s", got)
	}
}

func TestUpdateRateCannotZeroTheMultiplier(t *testing.T) {
	engine, _ := newTestEngine(t)
	err := engine.UpdateRate(admin, new(big.Int).Neg(fixed.Ray))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected rejection of non-positive rate, got %v", err)
	}
}
