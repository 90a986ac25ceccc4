package auction

import "math/big"

// Auction is one collateral sale opened by the liquidator. The raise phase is
// an English auction on the stable-token bid up to AskingAmount; once the
// asking amount is fully bid, the converge phase shrinks the collateral lot at
// that fixed price. LotFraction is the currently accepted Ray fraction of the
// original lot, starting at one.
type Auction struct {
	ID            uint64
	LotSymbols    []string
	OriginalLot   map[string]*big.Int
	Lot           map[string]*big.Int
	AskingAmount  *big.Int
	DebtBid       *big.Int
	CurrentWinner [20]byte
	Liquidated    [20]byte
	Treasury      [20]byte
	AuctionExpiry int64
	BidExpiry     int64
	LotFraction   *big.Int
}

// Clone returns a deep copy.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := &Auction{
		ID:            a.ID,
		LotSymbols:    append([]string(nil), a.LotSymbols...),
		OriginalLot:   cloneAmounts(a.OriginalLot),
		Lot:           cloneAmounts(a.Lot),
		AskingAmount:  copyBigInt(a.AskingAmount),
		DebtBid:       copyBigInt(a.DebtBid),
		CurrentWinner: a.CurrentWinner,
		Liquidated:    a.Liquidated,
		Treasury:      a.Treasury,
		AuctionExpiry: a.AuctionExpiry,
		BidExpiry:     a.BidExpiry,
		LotFraction:   copyBigInt(a.LotFraction),
	}
	return clone
}

func cloneAmounts(src map[string]*big.Int) map[string]*big.Int {
	if src == nil {
		return nil
	}
	out := make(map[string]*big.Int, len(src))
	for k, v := range src {
		out[k] = copyBigInt(v)
	}
	return out
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
