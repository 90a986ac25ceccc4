// Package fixed provides the decimal fixed-point arithmetic used by the
// protocol ledgers. Three scales are in play and must never be mixed without
// an explicit conversion: Wad (1e18) for token and collateral quantities, Ray
// (1e27) for prices, ratios and rate multipliers, and Rad (1e45, Wad times
// Ray) for stable-token monetary amounts.
//
// All helpers operate on *big.Int so intermediate products cannot overflow.
// Division truncates toward zero, matching big.Int.Quo.
package fixed

import "math/big"

var (
	// Wad is the 18-decimal unit scale.
	Wad = mustBigInt("1000000000000000000")
	// Ray is the 27-decimal ratio scale.
	Ray = mustBigInt("1000000000000000000000000000")
	// Rad is the 45-decimal monetary scale (Wad * Ray).
	Rad = mustBigInt("1000000000000000000000000000000000000000000000")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("fixed: invalid big integer constant")
	}
	return v
}

// WadMul multiplies two Wad quantities, truncating back to Wad scale.
func WadMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, Wad)
}

// RayMul multiplies two Ray quantities, truncating back to Ray scale. It is
// also the product form for Rad*Ray -> Rad, since both divide out one Ray.
func RayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, Ray)
}

// RadMul multiplies two Rad quantities, truncating back to Rad scale.
func RadMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, Rad)
}

// MulWadRay multiplies a Wad quantity by a Ray ratio, yielding an exact Rad.
// No precision is lost: the scales compose without a division.
func MulWadRay(wad, ray *big.Int) *big.Int {
	if wad == nil || ray == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(wad, ray)
}

// DivRadRay divides a Rad amount by a Ray ratio, yielding a Wad truncated
// toward zero.
func DivRadRay(rad, ray *big.Int) *big.Int {
	if rad == nil || ray == nil || ray.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(rad, ray)
}

// WadDiv divides two Wad quantities, truncating the Wad-scale quotient.
func WadDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, Wad)
	return scaled.Quo(scaled, b)
}

// RayDiv divides two Ray quantities, truncating the Ray-scale quotient.
func RayDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, Ray)
	return scaled.Quo(scaled, b)
}

// RadDiv divides two Rad quantities, truncating the Rad-scale quotient.
func RadDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, Rad)
	return scaled.Quo(scaled, b)
}

// WadToRad lifts a Wad quantity to Rad scale.
func WadToRad(wad *big.Int) *big.Int {
	if wad == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(wad, Ray)
}

// RayToRad lifts a Ray quantity to Rad scale.
func RayToRad(ray *big.Int) *big.Int {
	if ray == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(ray, Wad)
}

// RadToWad truncates a Rad amount down to Wad scale.
func RadToWad(rad *big.Int) *big.Int {
	if rad == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(rad, Ray)
}

// RPow raises a Ray-scale base to an integer power using exponentiation by
// squaring, truncating at each step. RPow(x, 0) is one Ray. Used for
// per-second compounding of the accumulated rate.
func RPow(base *big.Int, n uint64) *big.Int {
	if base == nil {
		return big.NewInt(0)
	}
	result := new(big.Int).Set(Ray)
	x := new(big.Int).Set(base)
	for n > 0 {
		if n&1 == 1 {
			result = RayMul(result, x)
		}
		x = RayMul(x, x)
		n >>= 1
	}
	return result
}

// Min returns the smaller of two big integers without aliasing the inputs.
func Min(a, b *big.Int) *big.Int {
	if a == nil {
		return copyOrZero(b)
	}
	if b == nil {
		return copyOrZero(a)
	}
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Max returns the larger of two big integers without aliasing the inputs.
func Max(a, b *big.Int) *big.Int {
	if a == nil {
		return copyOrZero(b)
	}
	if b == nil {
		return copyOrZero(a)
	}
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
