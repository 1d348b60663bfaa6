package rewarder

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type RewardAddedEvent struct {
	Token common.Address `json:"token"`
}

func (RewardAddedEvent) EventName() string { return "Rewarder__RewardAdded" }

type RewardNotifiedEvent struct {
	Token  common.Address `json:"token"`
	Funder common.Address `json:"funder"`
	Amount *uint256.Int   `json:"amount"`
}

func (RewardNotifiedEvent) EventName() string { return "Rewarder__RewardNotified" }

type DepositedEvent struct {
	Account common.Address `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
}

func (DepositedEvent) EventName() string { return "Rewarder__Deposited" }

type WithdrawnEvent struct {
	Account common.Address `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
}

func (WithdrawnEvent) EventName() string { return "Rewarder__Withdrawn" }

type RewardPaidEvent struct {
	Account common.Address `json:"account"`
	Token   common.Address `json:"token"`
	Amount  *uint256.Int   `json:"amount"`
}

func (RewardPaidEvent) EventName() string { return "Rewarder__RewardPaid" }
