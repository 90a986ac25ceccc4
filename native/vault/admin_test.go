package vault

import (
	"errors"
	"math/big"
	"testing"

	"lmcv/fixed"
)

func TestBootstrapRunsOnce(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Bootstrap(bob); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected second bootstrap to fail, got %v", err)
	}
}

func TestAdministrateRequiresAdmin(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Administrate(alice, bob, true); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected admin gate, got %v", err)
	}
	if err := engine.Administrate(admin, bob, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ok, err := engine.IsAdmin(bob)
	if err != nil || !ok {
		t.Fatalf("expected bob admin, ok=%v err=%v", ok, err)
	}
	if err := engine.Administrate(admin, bob, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = engine.IsAdmin(bob)
	if err != nil || ok {
		t.Fatalf("expected bob revoked, ok=%v err=%v", ok, err)
	}
}

func TestArchAdminTransferOrdering(t *testing.T) {
	next := makeAddress(0x20)

	// Transfer first, revoke second: allowed.
	engine, state := newTestEngine(t)
	if err := engine.Administrate(admin, next, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := engine.SetArchAdmin(admin, next); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := engine.Administrate(next, admin, false); err != nil {
		t.Fatalf("revoke old arch admin: %v", err)
	}
	if state.globals.ArchAdmin != next {
		t.Fatalf("arch admin not transferred")
	}
	if state.globals.Admins[admin] {
		t.Fatalf("old arch admin still privileged")
	}

	// Revoke first: the post-mutation check refuses and nothing persists.
	engine, state = newTestEngine(t)
	if err := engine.Administrate(admin, admin, false); !errors.Is(err, ErrCannotRemoveArchAdminPrivilege) {
		t.Fatalf("expected arch admin protection, got %v", err)
	}
	if !state.globals.Admins[admin] {
		t.Fatalf("failed revoke must not persist")
	}
}

func TestSetArchAdminRequiresArchAdmin(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Administrate(admin, bob, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	// A plain admin cannot take the arch role.
	if err := engine.SetArchAdmin(bob, bob); !errors.Is(err, ErrNotArchAdmin) {
		t.Fatalf("expected arch admin gate, got %v", err)
	}
}

func TestCollateralReRegistrationKeepsLockedAmount(t *testing.T) {
	engine, state := newTestEngine(t)
	openStandardPosition(t, engine, alice)

	if err := engine.EditAcceptedCollateralType(admin, "BAR", rayPct(100), wad(500_000), wad(2), rayPct(50), false); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	ct := state.collateral["BAR"]
	if ct.LockedAmount.Cmp(wad(800)) != 0 {
		t.Fatalf("re-registration must preserve locked amount, got %s", ct.LockedAmount)
	}
	if ct.SpotPrice.Cmp(rayPct(100)) != 0 || ct.CreditRatio.Cmp(rayPct(50)) != 0 {
		t.Fatalf("re-registration did not overwrite parameters")
	}
}

func TestSymbolNormalization(t *testing.T) {
	engine, _ := newTestEngine(t)
	fund(t, engine, alice, " foo ", wad(10))
	if err := engine.Loan(alice, alice, []string{"foo"}, []*big.Int{wad(10)}, wad(5)); err != nil {
		t.Fatalf("lowercase symbol must resolve: %v", err)
	}
	if _, err := NormalizeSymbol("   "); err == nil {
		t.Fatalf("blank symbol must be rejected")
	}
}

func TestSpotPriceCrashShrinksCredit(t *testing.T) {
	engine, _ := newTestEngine(t)
	openStandardPosition(t, engine, alice)

	// BAR crashes 0.58 -> 0.05: credit drops to 266.35 + 24 + 197 = 487.35.
	if err := engine.UpdateSpotPrice(admin, "BAR", rayPct(5)); err != nil {
		t.Fatalf("update price: %v", err)
	}
	credit, err := engine.CreditValue(alice)
	if err != nil {
		t.Fatalf("credit value: %v", err)
	}
	if credit.Cmp(radPct(48_735)) != 0 {
		t.Fatalf("unexpected post-crash credit: %s", credit)
	}

	// Existing debt stays; new borrowing against the vault is refused.
	if err := engine.Loan(alice, alice, nil, nil, big.NewInt(1)); !errors.Is(err, ErrCreditLimitExceeded) {
		t.Fatalf("expected credit limit error, got %v", err)
	}
}

func TestGlobalsEditsRequireAdmin(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.SetMintFee(alice, rayPct(1)); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected admin gate on mint fee, got %v", err)
	}
	if err := engine.SetMintFee(admin, new(big.Int).Neg(fixed.Ray)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected negative fee rejection, got %v", err)
	}
	if err := engine.SetRatePerSecond(admin, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected zero factor rejection, got %v", err)
	}
}
