package core

import (
	"math/big"
	"testing"

	"lmcv/fixed"
	"lmcv/state"
)

func makeAddress(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

func wad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixed.Wad) }

func rad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixed.Rad) }

func ray(hundredths int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(hundredths), fixed.Ray)
	return out.Quo(out, big.NewInt(100))
}

var (
	admin    = makeAddress(0x01)
	treasury = makeAddress(0x02)
	alice    = makeAddress(0x10)
	bidder   = makeAddress(0x11)
)

func newTestNode(t *testing.T) (*Node, *state.Manager) {
	t.Helper()
	manager := state.NewManager()
	node := NewNode(Config{ChainID: 1, Admin: admin, Treasury: treasury}, manager, nil, nil)
	if err := node.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := node.SetProtocolDebtCeiling(admin, rad(1_000_000)); err != nil {
		t.Fatalf("set ceiling: %v", err)
	}
	if err := node.EditAcceptedCollateralType(admin, "FOO", ray(1000), wad(100_000), big.NewInt(0), ray(50), false); err != nil {
		t.Fatalf("register FOO: %v", err)
	}
	return node, manager
}

func TestModuleAddressesDistinct(t *testing.T) {
	names := []string{ModuleAuction, ModuleAuctionEscrow, ModuleLiquidation, ModulePSM, ModuleBridge, ModuleBridgeFees}
	seen := make(map[[20]byte]string, len(names))
	for _, name := range names {
		addr := ModuleAddress(name)
		if addr == ([20]byte{}) {
			t.Fatalf("zero address for %s", name)
		}
		if prior, ok := seen[addr]; ok {
			t.Fatalf("%s collides with %s", name, prior)
		}
		seen[addr] = name
	}
	if ModuleAddress(ModuleAuction) != ModuleAddress(ModuleAuction) {
		t.Fatalf("derivation not deterministic")
	}
}

func TestBootstrapOnlyOnce(t *testing.T) {
	node, _ := newTestNode(t)
	if err := node.Bootstrap(); err == nil {
		t.Fatalf("second bootstrap must fail")
	}
}

func TestLoanThroughNode(t *testing.T) {
	node, _ := newTestNode(t)
	if err := node.PushCollateral(admin, alice, "FOO", wad(100)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := node.Loan(alice, alice, []string{"FOO"}, []*big.Int{wad(100)}, wad(400)); err != nil {
		t.Fatalf("loan: %v", err)
	}
	debt, err := node.DebtValue(alice)
	if err != nil {
		t.Fatalf("debt value: %v", err)
	}
	if debt.Cmp(rad(400)) != 0 {
		t.Fatalf("debt: %s", debt)
	}
	credit, err := node.CreditValue(alice)
	if err != nil {
		t.Fatalf("credit value: %v", err)
	}
	if credit.Cmp(rad(500)) != 0 {
		t.Fatalf("credit: %s", credit)
	}
}

func TestCollateralTuningThroughNode(t *testing.T) {
	node, _ := newTestNode(t)
	if err := node.EditCreditRatio(admin, "FOO", ray(60)); err != nil {
		t.Fatalf("edit credit ratio: %v", err)
	}
	if err := node.EditLockedAmountLimit(admin, "FOO", wad(50_000)); err != nil {
		t.Fatalf("edit locked limit: %v", err)
	}
	if err := node.EditDustLevel(admin, "FOO", wad(2)); err != nil {
		t.Fatalf("edit dust: %v", err)
	}
	if err := node.EditLeverageStatus(admin, "FOO", true); err != nil {
		t.Fatalf("edit leverage: %v", err)
	}
	ct, err := node.GetCollateralType("FOO")
	if err != nil {
		t.Fatalf("get collateral: %v", err)
	}
	if ct.CreditRatio.Cmp(ray(60)) != 0 {
		t.Fatalf("credit ratio: %s", ct.CreditRatio)
	}
	if ct.LockedAmountLimit.Cmp(wad(50_000)) != 0 {
		t.Fatalf("locked limit: %s", ct.LockedAmountLimit)
	}
	if ct.DustLevel.Cmp(wad(2)) != 0 {
		t.Fatalf("dust level: %s", ct.DustLevel)
	}
	if !ct.Leveraged {
		t.Fatalf("leverage flag not set")
	}
	if err := node.EditCreditRatio(alice, "FOO", ray(60)); err == nil {
		t.Fatalf("non-admin tuning must fail")
	}
}

func TestLiquidationFlowThroughNode(t *testing.T) {
	node, manager := newTestNode(t)
	if err := node.PushCollateral(admin, alice, "FOO", wad(100)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := node.Loan(alice, alice, []string{"FOO"}, []*big.Int{wad(100)}, wad(400)); err != nil {
		t.Fatalf("loan: %v", err)
	}
	if err := node.SetLotSize(admin, rad(10_000)); err != nil {
		t.Fatalf("lot size: %v", err)
	}
	if err := node.SetLiquidationPenalty(admin, new(big.Int).Set(fixed.Ray)); err != nil {
		t.Fatalf("penalty: %v", err)
	}

	// Crash the collateral to a tenth of its value.
	if err := node.UpdateSpotPrice(admin, "FOO", ray(100)); err != nil {
		t.Fatalf("crash price: %v", err)
	}
	id, err := node.Liquidate(alice)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	v, err := node.GetVault(alice)
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if v.NormalizedDebt.Sign() != 0 || len(v.LockedList) != 0 {
		t.Fatalf("vault not fully seized: %+v", v)
	}
	deficit, err := node.GetDeficit(treasury)
	if err != nil {
		t.Fatalf("deficit: %v", err)
	}
	if deficit.Cmp(rad(400)) != 0 {
		t.Fatalf("deficit: %s", deficit)
	}

	a, err := node.GetAuction(id)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if a == nil || a.Lot["FOO"].Cmp(wad(100)) != 0 {
		t.Fatalf("lot: %+v", a)
	}
	if a.AskingAmount.Cmp(rad(400)) != 0 {
		t.Fatalf("asking: %s", a.AskingAmount)
	}

	// A funded bidder takes the whole lot at asking.
	if err := node.Mint(admin, bidder, wad(500)); err != nil {
		t.Fatalf("fund bidder: %v", err)
	}
	if err := node.RaiseBid(bidder, id, rad(400)); err != nil {
		t.Fatalf("raise: %v", err)
	}
	a, err = node.GetAuction(id)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if a.CurrentWinner != bidder || a.DebtBid.Cmp(rad(400)) != 0 {
		t.Fatalf("bid not recorded: %+v", a)
	}
	tv, err := node.GetVault(treasury)
	if err != nil {
		t.Fatalf("treasury vault: %v", err)
	}
	if tv.StableBalance.Cmp(rad(400)) != 0 {
		t.Fatalf("treasury balance: %s", tv.StableBalance)
	}

	// The full state survives a snapshot round trip mid-auction.
	restored := state.NewManager()
	restored.Restore(manager.Snapshot())
	revived := NewNode(Config{ChainID: 1, Admin: admin, Treasury: treasury}, restored, nil, nil)
	a2, err := revived.GetAuction(id)
	if err != nil {
		t.Fatalf("revived auction: %v", err)
	}
	if a2 == nil || a2.DebtBid.Cmp(rad(400)) != 0 || a2.CurrentWinner != bidder {
		t.Fatalf("auction lost in snapshot: %+v", a2)
	}
	d2, err := revived.DebtValue(alice)
	if err != nil {
		t.Fatalf("revived debt: %v", err)
	}
	if d2.Sign() != 0 {
		t.Fatalf("debt reappeared: %s", d2)
	}
}

func TestTeleportThroughNode(t *testing.T) {
	node, _ := newTestNode(t)
	if err := node.Mint(admin, alice, wad(100)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := node.RegisterTrustedRemote(admin, 7, makeAddress(0x30)); err != nil {
		t.Fatalf("register remote: %v", err)
	}
	id, err := node.Teleport(alice, 7, makeAddress(0x40), wad(25))
	if err != nil {
		t.Fatalf("teleport: %v", err)
	}
	tr, err := node.GetTransfer(id)
	if err != nil {
		t.Fatalf("get transfer: %v", err)
	}
	if tr == nil || tr.Amount.Cmp(wad(25)) != 0 {
		t.Fatalf("transfer: %+v", tr)
	}
	v, err := node.GetVault(alice)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if v.StableBalance.Cmp(rad(75)) != 0 {
		t.Fatalf("balance after burn: %s", v.StableBalance)
	}
}
