// Package oracle implements the oracle security module: a staleness buffer
// between an external price feed and the vault's spot prices. Each poke
// promotes the buffered next price to current and reads a fresh next from the
// feed, at most once per hop window, so a poisoned feed value is visible for
// a full window before it can take effect.
package oracle

import (
	"errors"
	"math/big"
	"time"
)

var (
	errNilFeed = errors.New("oracle osm: feed not configured")

	// ErrNotPassed signals a poke inside the hop window.
	ErrNotPassed = errors.New("oracle osm: hop window not passed")
	// ErrInvalidFeedValue signals a feed read that was not valid.
	ErrInvalidFeedValue = errors.New("oracle osm: invalid feed value")
)

// DefaultHop is the minimum spacing between pokes.
const DefaultHop = int64(time.Hour / time.Second)

// Feed is an external price source returning a Ray price and a validity flag.
type Feed func() (*big.Int, bool)

// priceUpdater pushes promoted prices into the vault's collateral book.
type priceUpdater interface {
	UpdateSpotPrice(caller [20]byte, symbol string, price *big.Int) error
}

// OSM buffers one collateral symbol's price feed.
type OSM struct {
	symbol string
	feed   Feed
	ledger priceUpdater
	module [20]byte
	nowFn  func() int64
	hop    int64

	current  *big.Int
	next     *big.Int
	hasCur   bool
	hasNext  bool
	lastPoke int64
}

// New constructs an OSM for a symbol with the default one-hour hop.
func New(symbol string, feed Feed) *OSM {
	return &OSM{
		symbol: symbol,
		feed:   feed,
		nowFn:  func() int64 { return time.Now().Unix() },
		hop:    DefaultHop,
	}
}

// SetLedger wires the OSM to the vault engine; each successful poke then
// pushes the newly current price into the collateral book. The module
// address must be rely'd on the vault.
func (o *OSM) SetLedger(l priceUpdater, module [20]byte) {
	o.ledger = l
	o.module = module
}

// SetNowFunc overrides the hop clock. Primarily for tests.
func (o *OSM) SetNowFunc(now func() int64) {
	if now == nil {
		o.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	o.nowFn = now
}

// SetHop overrides the minimum poke spacing in seconds.
func (o *OSM) SetHop(hop int64) {
	if hop > 0 {
		o.hop = hop
	}
}

// Poke promotes the buffered next price to current and buffers a fresh feed
// read as next. At most one poke per hop window.
func (o *OSM) Poke() error {
	if o == nil || o.feed == nil {
		return errNilFeed
	}
	now := o.nowFn()
	if o.lastPoke != 0 && now < o.lastPoke+o.hop {
		return ErrNotPassed
	}
	price, ok := o.feed()
	if !ok || price == nil || price.Sign() < 0 {
		return ErrInvalidFeedValue
	}
	o.lastPoke = now
	if o.hasNext {
		o.current = o.next
		o.hasCur = true
	}
	o.next = new(big.Int).Set(price)
	o.hasNext = true

	if o.hasCur && o.ledger != nil {
		return o.ledger.UpdateSpotPrice(o.module, o.symbol, o.current)
	}
	return nil
}

// Peek returns the current price and whether one has been promoted yet.
func (o *OSM) Peek() (*big.Int, bool) {
	if o == nil || !o.hasCur {
		return big.NewInt(0), false
	}
	return new(big.Int).Set(o.current), true
}

// Peep returns the buffered next price and whether one has been read yet.
func (o *OSM) Peep() (*big.Int, bool) {
	if o == nil || !o.hasNext {
		return big.NewInt(0), false
	}
	return new(big.Int).Set(o.next), true
}

// Symbol returns the collateral symbol this OSM feeds.
func (o *OSM) Symbol() string { return o.symbol }
