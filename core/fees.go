package core

import (
	"github.com/holiman/uint256"
)

// bps returns price * shareBps / FeeDivisor, truncated.
func bps(price *uint256.Int, shareBps uint64) *uint256.Int {
	share := new(uint256.Int).Mul(price, uint256.NewInt(shareBps))
	return share.Div(share, uint256.NewInt(FeeDivisor))
}

// SplitFees divides a collection price between the previous owner, creator,
// team, protocol and treasury.
//
// Each explicit share is a truncated percentage of price; the treasury takes
// price minus the other four, so the shares always sum to price exactly. When
// protocolEnabled is false the protocol share is zero and folds into the
// treasury.
func SplitFees(price *uint256.Int, protocolEnabled bool) FeeSplit {
	split := FeeSplit{
		PrevOwner: bps(price, PrevOwnerFeeBps),
		Creator:   bps(price, CreatorFeeBps),
		Team:      bps(price, TeamFeeBps),
		Protocol:  new(uint256.Int),
	}
	if protocolEnabled {
		split.Protocol = bps(price, ProtocolFeeBps)
	}

	treasury := price.Clone()
	treasury.Sub(treasury, split.PrevOwner)
	treasury.Sub(treasury, split.Creator)
	treasury.Sub(treasury, split.Team)
	treasury.Sub(treasury, split.Protocol)
	split.Treasury = treasury

	return split
}
