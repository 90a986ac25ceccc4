package oracle

import (
	"errors"
	"math/big"
	"testing"

	"lmcv/fixed"
)

type priceRecorder struct {
	symbol string
	price  *big.Int
	calls  int
}

func (r *priceRecorder) UpdateSpotPrice(caller [20]byte, symbol string, price *big.Int) error {
	r.symbol = symbol
	r.price = new(big.Int).Set(price)
	r.calls++
	return nil
}

func ray(hundredths int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(hundredths), fixed.Ray)
	return out.Quo(out, big.NewInt(100))
}

func TestPokePromotesNextToCurrent(t *testing.T) {
	price := ray(761)
	valid := true
	osm := New("FOO", func() (*big.Int, bool) { return price, valid })
	now := int64(1_700_000_000)
	osm.SetNowFunc(func() int64 { return now })

	// First poke only buffers: nothing is current yet.
	if err := osm.Poke(); err != nil {
		t.Fatalf("poke: %v", err)
	}
	if _, ok := osm.Peek(); ok {
		t.Fatalf("no price should be current after one poke")
	}
	next, ok := osm.Peep()
	if !ok || next.Cmp(ray(761)) != 0 {
		t.Fatalf("next not buffered: %s ok=%v", next, ok)
	}

	// Second poke promotes; a feed change now sits in next for a full hop.
	price = ray(800)
	now += DefaultHop
	if err := osm.Poke(); err != nil {
		t.Fatalf("second poke: %v", err)
	}
	current, ok := osm.Peek()
	if !ok || current.Cmp(ray(761)) != 0 {
		t.Fatalf("current: %s ok=%v", current, ok)
	}
	next, _ = osm.Peep()
	if next.Cmp(ray(800)) != 0 {
		t.Fatalf("next: %s", next)
	}
}

func TestPokeRateLimited(t *testing.T) {
	osm := New("FOO", func() (*big.Int, bool) { return ray(100), true })
	now := int64(1_700_000_000)
	osm.SetNowFunc(func() int64 { return now })

	if err := osm.Poke(); err != nil {
		t.Fatalf("poke: %v", err)
	}
	now += DefaultHop - 1
	if err := osm.Poke(); !errors.Is(err, ErrNotPassed) {
		t.Fatalf("expected hop guard, got %v", err)
	}
	now++
	if err := osm.Poke(); err != nil {
		t.Fatalf("poke at hop boundary: %v", err)
	}
}

func TestPokeRejectsInvalidFeed(t *testing.T) {
	valid := false
	osm := New("FOO", func() (*big.Int, bool) { return ray(100), valid })
	now := int64(1_700_000_000)
	osm.SetNowFunc(func() int64 { return now })

	if err := osm.Poke(); !errors.Is(err, ErrInvalidFeedValue) {
		t.Fatalf("expected invalid feed, got %v", err)
	}
	// A failed read does not consume the hop window.
	valid = true
	if err := osm.Poke(); err != nil {
		t.Fatalf("poke after recovery: %v", err)
	}
}

func TestPokePushesPromotedPrice(t *testing.T) {
	recorder := &priceRecorder{}
	price := ray(761)
	osm := New("FOO", func() (*big.Int, bool) { return price, true })
	now := int64(1_700_000_000)
	osm.SetNowFunc(func() int64 { return now })
	osm.SetLedger(recorder, [20]byte{0x01})

	if err := osm.Poke(); err != nil {
		t.Fatalf("poke: %v", err)
	}
	if recorder.calls != 0 {
		t.Fatalf("nothing current yet, ledger must not be touched")
	}
	price = ray(800)
	now += DefaultHop
	if err := osm.Poke(); err != nil {
		t.Fatalf("second poke: %v", err)
	}
	if recorder.calls != 1 || recorder.symbol != "FOO" {
		t.Fatalf("ledger not updated: %+v", recorder)
	}
	if recorder.price.Cmp(ray(761)) != 0 {
		t.Fatalf("promoted price: %s", recorder.price)
	}
}
