package content

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/cloudx-io/contentauction/core"
	"github.com/cloudx-io/contentauction/ledger"
)

// CollectParams are the caller's terms for collecting a token.
type CollectParams struct {
	To      common.Address
	TokenID uint64
	// EpochID is the epoch the caller priced against; a collection that
	// landed first invalidates it.
	EpochID uint64
	// Deadline is the last unix time at which the collection may execute.
	Deadline uint64
	// MaxPrice is the most the caller is willing to pay.
	MaxPrice *uint256.Int
}

// enter acquires the re-entrancy guard shared by Collect and Distribute.
func (c *Content) enter() error {
	if c.entered {
		return ErrReentrantCall
	}
	c.entered = true
	return nil
}

func (c *Content) exit() {
	c.entered = false
}

// Collect buys p.TokenID for p.To at the current dutch auction price, paid by
// sender in the quote asset, and returns the price paid.
//
// Processing flow:
//  1. Check recipient, approval, deadline, epoch and price ceiling, in that order
//  2. Advance the auction and record the new stake
//  3. Move the token to the recipient
//  4. Pull the price from sender and pay out the fee split
//  5. Deposit the new stake and withdraw the previous owner's stake in the rewarder
//
// Either every step takes effect or none does.
func (c *Content) Collect(sender common.Address, p CollectParams) (price *uint256.Int, err error) {
	if err := c.enter(); err != nil {
		return nil, fmt.Errorf("collect token %d: %w", p.TokenID, err)
	}
	defer c.exit()

	snap := c.journal.Snapshot()
	defer func() {
		if err != nil {
			c.journal.RevertToSnapshot(snap)
			c.log.Debug("collect rejected",
				zap.Uint64("token_id", p.TokenID),
				zap.String("sender", sender.Hex()),
				zap.Error(err),
			)
		}
	}()

	// Step 1: Preconditions
	if p.To == (common.Address{}) {
		return nil, fmt.Errorf("collect token %d: %w", p.TokenID, ErrZeroTo)
	}
	rec, err := c.token(p.TokenID)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if !rec.approved {
		return nil, fmt.Errorf("collect token %d: %w", p.TokenID, ErrNotApproved)
	}
	now := c.clock.Now()
	if now > p.Deadline {
		return nil, fmt.Errorf("collect token %d at %d after deadline %d: %w", p.TokenID, now, p.Deadline, ErrDeadlinePassed)
	}
	if p.EpochID != rec.auction.EpochID {
		return nil, fmt.Errorf("collect token %d: expected epoch %d, live epoch %d: %w",
			p.TokenID, p.EpochID, rec.auction.EpochID, ErrEpochIDMismatch)
	}
	price = core.PriceAt(rec.auction, now)
	maxPrice := p.MaxPrice
	if maxPrice == nil {
		maxPrice = new(uint256.Int)
	}
	if price.Gt(maxPrice) {
		return nil, fmt.Errorf("collect token %d: price %s above max %s: %w",
			p.TokenID, price.Dec(), maxPrice.Dec(), ErrMaxPriceExceeded)
	}

	// Step 2: Advance the auction and record the stake
	prevOwner := rec.owner
	prevStake := rec.stake
	collectedEpoch := rec.auction.EpochID

	next := rec
	next.owner = p.To
	next.stake = price.Clone()
	next.auction = core.NextAuction(rec.auction, price, c.minInitPrice, now)
	ledger.Set(c.journal, c.tokens, p.TokenID, next)

	// Step 3: Move the token
	c.moveToken(prevOwner, p.To, p.TokenID)

	// Step 4: Take payment and split it
	if !price.IsZero() {
		if err := c.quote.TransferFrom(c.address, sender, c.address, price); err != nil {
			return nil, fmt.Errorf("collect token %d: pull payment: %w", p.TokenID, err)
		}
		if err := c.payFees(p.TokenID, prevOwner, rec.creator, price); err != nil {
			return nil, fmt.Errorf("collect token %d: %w", p.TokenID, err)
		}
	}

	// Step 5: Rewarder bookkeeping, after every fund movement
	if !price.IsZero() {
		if err := c.rewarder.Deposit(c.address, p.To, price); err != nil {
			return nil, fmt.Errorf("collect token %d: deposit stake: %w", p.TokenID, err)
		}
	}
	if !prevStake.IsZero() {
		if err := c.rewarder.Withdraw(c.address, prevOwner, prevStake); err != nil {
			return nil, fmt.Errorf("collect token %d: withdraw previous stake: %w", p.TokenID, err)
		}
	}

	c.journal.Emit(CollectedEvent{
		Who:     sender,
		To:      p.To,
		TokenID: p.TokenID,
		EpochID: collectedEpoch,
		Price:   price.Clone(),
	})

	c.log.Info("token collected",
		zap.Uint64("token_id", p.TokenID),
		zap.Uint64("epoch_id", collectedEpoch),
		zap.String("from", prevOwner.Hex()),
		zap.String("to", p.To.Hex()),
		zap.String("price", core.FormatUnits(price)),
	)
	return price, nil
}

func (c *Content) moveToken(from, to common.Address, tokenID uint64) {
	ledger.Set(c.journal, c.balances, from, c.balances[from]-1)
	ledger.Set(c.journal, c.balances, to, c.balances[to]+1)
	c.journal.Emit(TransferEvent{From: from, To: to, TokenID: tokenID})
}

// payFees disburses price, already held by the collection, between the
// previous owner, creator, team, protocol and treasury.
func (c *Content) payFees(tokenID uint64, prevOwner, creator common.Address, price *uint256.Int) error {
	protocol := c.registry.ProtocolFeeAddress()
	split := core.SplitFees(price, protocol != (common.Address{}))

	payouts := []struct {
		to     common.Address
		amount *uint256.Int
	}{
		{prevOwner, split.PrevOwner},
		{creator, split.Creator},
		{c.team, split.Team},
		{protocol, split.Protocol},
		{c.treasury, split.Treasury},
	}
	for _, payout := range payouts {
		// Shares routed to the collection itself stay put for Distribute.
		if payout.amount.IsZero() || payout.to == c.address {
			continue
		}
		if err := c.quote.Transfer(c.address, payout.to, payout.amount); err != nil {
			return fmt.Errorf("pay %s to %s: %w", payout.amount.Dec(), payout.to.Hex(), err)
		}
	}

	c.journal.Emit(FeesPaidEvent{
		TokenID:   tokenID,
		PrevOwner: prevOwner,
		Creator:   creator,
		Team:      c.team,
		Protocol:  protocol,
		Treasury:  c.treasury,
		Split:     split,
	})
	return nil
}
