package chain

import "math/big"

// weiPerNative is 10^18, the wei denomination of one native unit.
var weiPerNative = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// NativeToWei converts native units to wei, truncating sub-wei precision.
func NativeToWei(amount float64) *big.Int {
	if amount <= 0 {
		return new(big.Int)
	}
	f := new(big.Float).Mul(big.NewFloat(amount), weiPerNative)
	wei, _ := f.Int(nil)
	return wei
}

// WeiToNative converts wei to native units as a float64.
func WeiToNative(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerNative)
	v, _ := f.Float64()
	return v
}
