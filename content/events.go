package content

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/contentauction/core"
)

type CreatedEvent struct {
	Who     common.Address `json:"who"`
	To      common.Address `json:"to"`
	TokenID uint64         `json:"token_id"`
	URI     string         `json:"uri"`
}

func (CreatedEvent) EventName() string { return "Content__Created" }

type CollectedEvent struct {
	Who     common.Address `json:"who"`
	To      common.Address `json:"to"`
	TokenID uint64         `json:"token_id"`
	EpochID uint64         `json:"epoch_id"`
	Price   *uint256.Int   `json:"price"`
}

func (CollectedEvent) EventName() string { return "Content__Collected" }

type FeesPaidEvent struct {
	TokenID   uint64         `json:"token_id"`
	PrevOwner common.Address `json:"prev_owner"`
	Creator   common.Address `json:"creator"`
	Team      common.Address `json:"team"`
	Protocol  common.Address `json:"protocol"`
	Treasury  common.Address `json:"treasury"`
	Split     core.FeeSplit  `json:"split"`
}

func (FeesPaidEvent) EventName() string { return "Content__FeesPaid" }

type TransferEvent struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	TokenID uint64         `json:"token_id"`
}

func (TransferEvent) EventName() string { return "Content__Transfer" }

type DistributedEvent struct {
	QuoteAmount *uint256.Int `json:"quote_amount"`
	UnitAmount  *uint256.Int `json:"unit_amount"`
}

func (DistributedEvent) EventName() string { return "Content__Distributed" }

type ApprovedEvent struct {
	Moderator common.Address `json:"moderator"`
	TokenID   uint64         `json:"token_id"`
}

func (ApprovedEvent) EventName() string { return "Content__Approved" }

type URISetEvent struct {
	URI string `json:"uri"`
}

func (URISetEvent) EventName() string { return "Content__URISet" }

type TreasurySetEvent struct {
	Treasury common.Address `json:"treasury"`
}

func (TreasurySetEvent) EventName() string { return "Content__TreasurySet" }

type TeamSetEvent struct {
	Team common.Address `json:"team"`
}

func (TeamSetEvent) EventName() string { return "Content__TeamSet" }

type IsModeratedSetEvent struct {
	IsModerated bool `json:"is_moderated"`
}

func (IsModeratedSetEvent) EventName() string { return "Content__IsModeratedSet" }

type ModeratorSetEvent struct {
	Account     common.Address `json:"account"`
	IsModerator bool           `json:"is_moderator"`
}

func (ModeratorSetEvent) EventName() string { return "Content__ModeratorSet" }

type RewardAddedEvent struct {
	Token common.Address `json:"token"`
}

func (RewardAddedEvent) EventName() string { return "Content__RewardAdded" }

type OwnershipTransferredEvent struct {
	PreviousOwner common.Address `json:"previous_owner"`
	NewOwner      common.Address `json:"new_owner"`
}

func (OwnershipTransferredEvent) EventName() string { return "OwnershipTransferred" }
