package content

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cloudx-io/contentauction/ledger"
)

func (c *Content) onlyOwner(sender common.Address) error {
	if sender != c.owner {
		return ErrNotOwner
	}
	return nil
}

// SetURI sets the collection-level metadata uri.
func (c *Content) SetURI(sender common.Address, uri string) error {
	if err := c.onlyOwner(sender); err != nil {
		return fmt.Errorf("set uri: %w", err)
	}
	ledger.Assign(c.journal, &c.uri, uri)
	c.journal.Emit(URISetEvent{URI: uri})
	return nil
}

// SetTreasury sets the recipient of the residual fee share.
func (c *Content) SetTreasury(sender, treasury common.Address) error {
	if err := c.onlyOwner(sender); err != nil {
		return fmt.Errorf("set treasury: %w", err)
	}
	if treasury == (common.Address{}) {
		return fmt.Errorf("set treasury: %w", ErrZeroAddress)
	}
	ledger.Assign(c.journal, &c.treasury, treasury)
	c.journal.Emit(TreasurySetEvent{Treasury: treasury})
	c.log.Info("treasury set", zap.String("treasury", treasury.Hex()))
	return nil
}

// SetTeam sets the recipient of the team fee share.
func (c *Content) SetTeam(sender, team common.Address) error {
	if err := c.onlyOwner(sender); err != nil {
		return fmt.Errorf("set team: %w", err)
	}
	if team == (common.Address{}) {
		return fmt.Errorf("set team: %w", ErrZeroAddress)
	}
	ledger.Assign(c.journal, &c.team, team)
	c.journal.Emit(TeamSetEvent{Team: team})
	c.log.Info("team set", zap.String("team", team.Hex()))
	return nil
}

// SetIsModerated toggles whether newly created tokens need a moderator's
// approval before they can be collected. Existing tokens keep their status.
func (c *Content) SetIsModerated(sender common.Address, isModerated bool) error {
	if err := c.onlyOwner(sender); err != nil {
		return fmt.Errorf("set is moderated: %w", err)
	}
	ledger.Assign(c.journal, &c.isModerated, isModerated)
	c.journal.Emit(IsModeratedSetEvent{IsModerated: isModerated})
	return nil
}

// SetModerators grants or revokes moderation rights for accounts.
func (c *Content) SetModerators(sender common.Address, accounts []common.Address, isModerator bool) (err error) {
	if err := c.onlyOwner(sender); err != nil {
		return fmt.Errorf("set moderators: %w", err)
	}

	snap := c.journal.Snapshot()
	defer func() {
		if err != nil {
			c.journal.RevertToSnapshot(snap)
		}
	}()

	for _, account := range accounts {
		if account == (common.Address{}) {
			return fmt.Errorf("set moderators: %w", ErrZeroAddress)
		}
		ledger.Set(c.journal, c.moderators, account, isModerator)
		c.journal.Emit(ModeratorSetEvent{Account: account, IsModerator: isModerator})
	}
	return nil
}

// ApproveContents approves every token in tokenIDs for collection. The batch
// is atomic: an unknown or already approved token rejects all of it.
func (c *Content) ApproveContents(sender common.Address, tokenIDs []uint64) (err error) {
	if sender != c.owner && !c.moderators[sender] {
		return fmt.Errorf("approve contents: %w", ErrNotModerator)
	}

	snap := c.journal.Snapshot()
	defer func() {
		if err != nil {
			c.journal.RevertToSnapshot(snap)
		}
	}()

	for _, tokenID := range tokenIDs {
		rec, err := c.token(tokenID)
		if err != nil {
			return fmt.Errorf("approve contents: %w", err)
		}
		if rec.approved {
			return fmt.Errorf("approve contents: token %d: %w", tokenID, ErrAlreadyApproved)
		}
		rec.approved = true
		ledger.Set(c.journal, c.tokens, tokenID, rec)
		c.journal.Emit(ApprovedEvent{Moderator: sender, TokenID: tokenID})
	}

	c.log.Info("tokens approved", zap.String("moderator", sender.Hex()), zap.Uint64s("token_ids", tokenIDs))
	return nil
}

// AddReward registers token as an additional reward token with the rewarder.
func (c *Content) AddReward(sender, token common.Address) error {
	if err := c.onlyOwner(sender); err != nil {
		return fmt.Errorf("add reward: %w", err)
	}
	if err := c.rewarder.AddReward(c.address, token); err != nil {
		return fmt.Errorf("add reward %s: %w", token.Hex(), err)
	}
	c.journal.Emit(RewardAddedEvent{Token: token})
	return nil
}

// TransferOwnership hands the admin surface to newOwner.
func (c *Content) TransferOwnership(sender, newOwner common.Address) error {
	if err := c.onlyOwner(sender); err != nil {
		return fmt.Errorf("transfer ownership: %w", err)
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("transfer ownership: %w", ErrZeroAddress)
	}
	prev := c.owner
	ledger.Assign(c.journal, &c.owner, newOwner)
	c.journal.Emit(OwnershipTransferredEvent{PreviousOwner: prev, NewOwner: newOwner})
	c.log.Info("ownership transferred", zap.String("from", prev.Hex()), zap.String("to", newOwner.Hex()))
	return nil
}
