package core

import (
	"github.com/holiman/uint256"
)

const (
	// EpochPeriod is the length of one dutch auction cycle in seconds (30 days).
	EpochPeriod uint64 = 30 * 24 * 60 * 60

	// Fee shares in basis points of FeeDivisor. The treasury receives whatever
	// is left after the other shares are paid.
	PrevOwnerFeeBps uint64 = 8_000
	CreatorFeeBps   uint64 = 200
	TeamFeeBps      uint64 = 200
	ProtocolFeeBps  uint64 = 100
	FeeDivisor      uint64 = 10_000
)

var (
	// Precision is the fixed-point scale (1e18) used by PriceMultiplier.
	Precision = uint256.NewInt(1_000_000_000_000_000_000)

	// PriceMultiplier scales the paid price into the next epoch's starting price (2.0x).
	PriceMultiplier = uint256.NewInt(2_000_000_000_000_000_000)

	// AbsMaxInitPrice is the ceiling for any epoch's starting price (2^192 - 1).
	AbsMaxInitPrice = new(uint256.Int).Sub(
		new(uint256.Int).Lsh(uint256.NewInt(1), 192),
		uint256.NewInt(1),
	)
)

// Auction is the dutch auction state of a single token.
type Auction struct {
	EpochID   uint64       `json:"epoch_id"`
	InitPrice *uint256.Int `json:"init_price"`
	StartTime uint64       `json:"start_time"`
}

// Clone returns a deep copy so callers can't alias the stored price.
func (a Auction) Clone() Auction {
	out := a
	if a.InitPrice != nil {
		out.InitPrice = a.InitPrice.Clone()
	}
	return out
}

// FeeSplit is the disbursement of one collection price across the five parties.
type FeeSplit struct {
	PrevOwner *uint256.Int `json:"prev_owner"`
	Creator   *uint256.Int `json:"creator"`
	Team      *uint256.Int `json:"team"`
	Protocol  *uint256.Int `json:"protocol"`
	Treasury  *uint256.Int `json:"treasury"`
}

// Total sums all shares. It always equals the price the split was computed from.
func (f FeeSplit) Total() *uint256.Int {
	total := new(uint256.Int)
	for _, share := range []*uint256.Int{f.PrevOwner, f.Creator, f.Team, f.Protocol, f.Treasury} {
		if share != nil {
			total.Add(total, share)
		}
	}
	return total
}
