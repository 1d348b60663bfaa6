package core

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/peterldowns/testy/check"
)

func TestSplitFees(t *testing.T) {
	tests := []struct {
		name            string
		price           uint64
		protocolEnabled bool
		prevOwner       uint64
		creator         uint64
		team            uint64
		protocol        uint64
		treasury        uint64
	}{
		{
			name:            "round price with protocol",
			price:           1_000_000,
			protocolEnabled: true,
			prevOwner:       800_000,
			creator:         20_000,
			team:            20_000,
			protocol:        10_000,
			treasury:        150_000,
		},
		{
			name:            "protocol share folds into treasury",
			price:           1_000_000,
			protocolEnabled: false,
			prevOwner:       800_000,
			creator:         20_000,
			team:            20_000,
			protocol:        0,
			treasury:        160_000,
		},
		{
			name:            "truncation remainder goes to treasury",
			price:           99,
			protocolEnabled: true,
			prevOwner:       79,
			creator:         1,
			team:            1,
			protocol:        0,
			treasury:        18,
		},
		{
			name:            "one unit",
			price:           1,
			protocolEnabled: true,
			treasury:        1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := SplitFees(uint256.NewInt(tt.price), tt.protocolEnabled)

			check.Equal(t, tt.prevOwner, split.PrevOwner.Uint64())
			check.Equal(t, tt.creator, split.Creator.Uint64())
			check.Equal(t, tt.team, split.Team.Uint64())
			check.Equal(t, tt.protocol, split.Protocol.Uint64())
			check.Equal(t, tt.treasury, split.Treasury.Uint64())
			check.Equal(t, tt.price, split.Total().Uint64())
		})
	}
}

func TestSplitFees_SumsToPrice(t *testing.T) {
	prices := []*uint256.Int{
		uint256.NewInt(1),
		uint256.NewInt(3),
		uint256.NewInt(9_999),
		uint256.NewInt(10_001),
		uint256.NewInt(123_456_789_123_456_789),
		AbsMaxInitPrice,
	}
	for i := uint64(1); i < 500; i += 7 {
		prices = append(prices, uint256.NewInt(i*i*31))
	}

	for _, price := range prices {
		for _, protocolEnabled := range []bool{true, false} {
			split := SplitFees(price, protocolEnabled)
			check.Equal(t, price.Dec(), split.Total().Dec())
		}
	}
}

func TestSplitFees_DoesNotMutatePrice(t *testing.T) {
	price := uint256.NewInt(1_000)
	_ = SplitFees(price, true)
	check.Equal(t, uint64(1_000), price.Uint64())
}
