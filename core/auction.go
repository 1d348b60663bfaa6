package core

import (
	"github.com/holiman/uint256"
)

// PriceAt returns the dutch auction price of a at unix time now.
//
// The price decays linearly from InitPrice at StartTime to zero after
// EpochPeriod seconds and stays at zero afterwards:
//
//	price = InitPrice - InitPrice * elapsed / EpochPeriod
//
// Division truncates toward zero. A nil InitPrice prices at zero.
func PriceAt(a Auction, now uint64) *uint256.Int {
	if a.InitPrice == nil {
		return new(uint256.Int)
	}

	var elapsed uint64
	if now > a.StartTime {
		elapsed = now - a.StartTime
	}
	if elapsed > EpochPeriod {
		return new(uint256.Int)
	}

	// InitPrice is at most 2^192-1 and elapsed at most 2^22, so the product fits.
	decay := new(uint256.Int).Mul(a.InitPrice, uint256.NewInt(elapsed))
	decay.Div(decay, uint256.NewInt(EpochPeriod))

	return new(uint256.Int).Sub(a.InitPrice, decay)
}

// NextInitPrice returns the starting price of the epoch that follows a
// collection at price:
//
//	clamp(price * PriceMultiplier / Precision, minInitPrice, AbsMaxInitPrice)
//
// The result saturates at AbsMaxInitPrice on overflow and never drops below
// minInitPrice, even when price itself was below the floor.
func NextInitPrice(price, minInitPrice *uint256.Int) *uint256.Int {
	next, overflow := new(uint256.Int).MulDivOverflow(price, PriceMultiplier, Precision)
	if overflow || next.Gt(AbsMaxInitPrice) {
		return AbsMaxInitPrice.Clone()
	}
	if next.Lt(minInitPrice) {
		return minInitPrice.Clone()
	}
	return next
}

// NextAuction advances a after a collection at price settled at unix time now.
func NextAuction(a Auction, price, minInitPrice *uint256.Int, now uint64) Auction {
	return Auction{
		EpochID:   a.EpochID + 1,
		InitPrice: NextInitPrice(price, minInitPrice),
		StartTime: now,
	}
}
