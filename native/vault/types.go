package vault

import (
	"fmt"
	"math/big"
	"strings"

	"lmcv/fixed"
)

// CollateralType carries the global, governance-controlled parameters for one
// accepted collateral symbol. Amount fields are Wad scale, price and ratio
// fields are Ray scale.
type CollateralType struct {
	// Symbol is the canonical uppercase identifier for the collateral.
	Symbol string
	// SpotPrice is the current oracle price in Ray.
	SpotPrice *big.Int
	// LockedAmount is the total amount locked across all vaults.
	LockedAmount *big.Int
	// LockedAmountLimit caps LockedAmount.
	LockedAmountLimit *big.Int
	// DustLevel is the minimum nonzero locked amount per vault.
	DustLevel *big.Int
	// CreditRatio is the fraction of spot value counted toward borrowing
	// power, 0 < ratio <= 1.
	CreditRatio *big.Int
	// Leveraged marks collateral whose position is itself debt funded. The
	// credit aggregation applies its ratio exactly once and portfolio views
	// can exclude it.
	Leveraged bool
}

// Clone returns a deep copy so callers can mutate freely.
func (c *CollateralType) Clone() *CollateralType {
	if c == nil {
		return nil
	}
	clone := *c
	clone.SpotPrice = copyBigInt(c.SpotPrice)
	clone.LockedAmount = copyBigInt(c.LockedAmount)
	clone.LockedAmountLimit = copyBigInt(c.LockedAmountLimit)
	clone.DustLevel = copyBigInt(c.DustLevel)
	clone.CreditRatio = copyBigInt(c.CreditRatio)
	return &clone
}

// Vault is the per-user position: free and posted collateral, normalized debt
// and the internal stable-token balance.
type Vault struct {
	Owner [20]byte
	// Unlocked holds deposited, free collateral per symbol (Wad).
	Unlocked map[string]*big.Int
	// Locked holds collateral posted against debt per symbol (Wad).
	Locked map[string]*big.Int
	// LockedList tracks symbols with nonzero locked balance. Removal swaps
	// with the last element so membership updates stay O(1).
	LockedList []string
	// LockedIndex maps symbol to its position in LockedList.
	LockedIndex map[string]int
	// NormalizedDebt is debt in pre-interest units (Wad). The owed amount is
	// NormalizedDebt times the accumulated rate.
	NormalizedDebt *big.Int
	// StableBalance is spendable stable-token credit inside the ledger (Rad).
	StableBalance *big.Int
	// Agents are proxy addresses consented to operate this vault.
	Agents map[[20]byte]bool
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := &Vault{
		Owner:          v.Owner,
		Unlocked:       copyAmountMap(v.Unlocked),
		Locked:         copyAmountMap(v.Locked),
		LockedList:     append([]string(nil), v.LockedList...),
		LockedIndex:    make(map[string]int, len(v.LockedIndex)),
		NormalizedDebt: copyBigInt(v.NormalizedDebt),
		StableBalance:  copyBigInt(v.StableBalance),
		Agents:         make(map[[20]byte]bool, len(v.Agents)),
	}
	for symbol, idx := range v.LockedIndex {
		clone.LockedIndex[symbol] = idx
	}
	for agent, ok := range v.Agents {
		clone.Agents[agent] = ok
	}
	return clone
}

func (v *Vault) ensureMaps() {
	if v.Unlocked == nil {
		v.Unlocked = make(map[string]*big.Int)
	}
	if v.Locked == nil {
		v.Locked = make(map[string]*big.Int)
	}
	if v.Agents == nil {
		v.Agents = make(map[[20]byte]bool)
	}
	if v.NormalizedDebt == nil {
		v.NormalizedDebt = big.NewInt(0)
	}
	if v.StableBalance == nil {
		v.StableBalance = big.NewInt(0)
	}
	if v.LockedIndex == nil {
		v.LockedIndex = make(map[string]int, len(v.LockedList))
		for i, symbol := range v.LockedList {
			v.LockedIndex[symbol] = i
		}
	}
}

func (v *Vault) unlocked(symbol string) *big.Int {
	if amount, ok := v.Unlocked[symbol]; ok && amount != nil {
		return amount
	}
	return big.NewInt(0)
}

func (v *Vault) locked(symbol string) *big.Int {
	if amount, ok := v.Locked[symbol]; ok && amount != nil {
		return amount
	}
	return big.NewInt(0)
}

func (v *Vault) setUnlocked(symbol string, amount *big.Int) {
	if amount.Sign() == 0 {
		delete(v.Unlocked, symbol)
		return
	}
	v.Unlocked[symbol] = amount
}

// setLocked stores the new locked amount and keeps the locked-symbol list in
// sync: a symbol joins the list on its first nonzero balance and leaves it,
// via swap-with-last, when the balance returns to zero.
func (v *Vault) setLocked(symbol string, amount *big.Int) {
	_, present := v.LockedIndex[symbol]
	if amount.Sign() == 0 {
		delete(v.Locked, symbol)
		if present {
			v.removeLockedSymbol(symbol)
		}
		return
	}
	v.Locked[symbol] = amount
	if !present {
		v.LockedIndex[symbol] = len(v.LockedList)
		v.LockedList = append(v.LockedList, symbol)
	}
}

func (v *Vault) removeLockedSymbol(symbol string) {
	idx := v.LockedIndex[symbol]
	last := len(v.LockedList) - 1
	if idx != last {
		moved := v.LockedList[last]
		v.LockedList[idx] = moved
		v.LockedIndex[moved] = idx
	}
	v.LockedList = v.LockedList[:last]
	delete(v.LockedIndex, symbol)
}

// Globals is the protocol-wide accounting state shared by every vault.
type Globals struct {
	// AccumulatedRate is the interest multiplier applied to normalized debt
	// (Ray). Starts at one Ray.
	AccumulatedRate *big.Int
	// RatePerSecond is the per-second compounding factor applied by
	// AccrueInterest (Ray). One Ray means no drift.
	RatePerSecond *big.Int
	// LastAccrual is the unix timestamp of the last accrual.
	LastAccrual int64
	// TotalNormalizedDebt sums normalized debt across all vaults (Wad).
	TotalNormalizedDebt *big.Int
	// TotalStable is the total stable-token credit in the ledger (Rad).
	TotalStable *big.Int
	// ProtocolDebtCeiling caps TotalNormalizedDebt times the rate (Rad).
	ProtocolDebtCeiling *big.Int
	// TotalDeficit sums the per-beneficiary protocol deficit (Rad).
	TotalDeficit *big.Int
	// MintFee is the fraction of newly minted debt diverted to the treasury
	// (Ray).
	MintFee *big.Int
	// Treasury receives mint fees and interest revenue.
	Treasury [20]byte
	// PSM is exempt from the mint fee when swapping at peg.
	PSM [20]byte
	// ArchAdmin can never be removed from the admin set without reassignment.
	ArchAdmin [20]byte
	// Admins may call privileged operations.
	Admins map[[20]byte]bool
}

// Clone returns a deep copy of the protocol globals.
func (g *Globals) Clone() *Globals {
	if g == nil {
		return nil
	}
	clone := *g
	clone.AccumulatedRate = copyBigInt(g.AccumulatedRate)
	clone.RatePerSecond = copyBigInt(g.RatePerSecond)
	clone.TotalNormalizedDebt = copyBigInt(g.TotalNormalizedDebt)
	clone.TotalStable = copyBigInt(g.TotalStable)
	clone.ProtocolDebtCeiling = copyBigInt(g.ProtocolDebtCeiling)
	clone.TotalDeficit = copyBigInt(g.TotalDeficit)
	clone.MintFee = copyBigInt(g.MintFee)
	clone.Admins = make(map[[20]byte]bool, len(g.Admins))
	for admin, ok := range g.Admins {
		clone.Admins[admin] = ok
	}
	return &clone
}

func (g *Globals) ensureDefaults() {
	if g.AccumulatedRate == nil || g.AccumulatedRate.Sign() == 0 {
		g.AccumulatedRate = new(big.Int).Set(fixed.Ray)
	}
	if g.RatePerSecond == nil || g.RatePerSecond.Sign() == 0 {
		g.RatePerSecond = new(big.Int).Set(fixed.Ray)
	}
	if g.TotalNormalizedDebt == nil {
		g.TotalNormalizedDebt = big.NewInt(0)
	}
	if g.TotalStable == nil {
		g.TotalStable = big.NewInt(0)
	}
	if g.ProtocolDebtCeiling == nil {
		g.ProtocolDebtCeiling = big.NewInt(0)
	}
	if g.TotalDeficit == nil {
		g.TotalDeficit = big.NewInt(0)
	}
	if g.MintFee == nil {
		g.MintFee = big.NewInt(0)
	}
	if g.Admins == nil {
		g.Admins = make(map[[20]byte]bool)
	}
}

// NormalizeSymbol canonicalises a collateral symbol to trimmed uppercase and
// rejects the empty string.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("vault: empty collateral symbol")
	}
	return trimmed, nil
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func copyAmountMap(src map[string]*big.Int) map[string]*big.Int {
	dst := make(map[string]*big.Int, len(src))
	for symbol, amount := range src {
		dst[symbol] = copyBigInt(amount)
	}
	return dst
}
