package content

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/cloudx-io/contentauction/core"
)

// Distribute forwards the collection's quote and unit balances to the
// rewarder as new reward streams. An asset is forwarded only when its balance
// exceeds what the rewarder still has left to stream for it and exceeds the
// reward duration, so the resulting reward rate is at least one unit per
// second. Anyone may call it; calls with nothing eligible are no-ops.
func (c *Content) Distribute(sender common.Address) (err error) {
	if err := c.enter(); err != nil {
		return fmt.Errorf("distribute: %w", err)
	}
	defer c.exit()

	snap := c.journal.Snapshot()
	defer func() {
		if err != nil {
			c.journal.RevertToSnapshot(snap)
		}
	}()

	quoteAmount, err := c.distributeAsset(c.quote)
	if err != nil {
		return err
	}
	unitAmount, err := c.distributeAsset(c.unit)
	if err != nil {
		return err
	}

	if quoteAmount.IsZero() && unitAmount.IsZero() {
		return nil
	}

	c.journal.Emit(DistributedEvent{QuoteAmount: quoteAmount, UnitAmount: unitAmount})
	c.log.Info("rewards distributed",
		zap.String("sender", sender.Hex()),
		zap.String("quote_amount", core.FormatUnits(quoteAmount)),
		zap.String("unit_amount", core.FormatUnits(unitAmount)),
	)
	return nil
}

func (c *Content) distributeAsset(asset ERC20) (*uint256.Int, error) {
	token := asset.Address()
	balance := asset.BalanceOf(c.address)
	left := c.rewarder.Left(token)

	if !balance.Gt(left) || !balance.Gt(uint256.NewInt(c.rewarder.Duration())) {
		return new(uint256.Int), nil
	}

	if err := asset.Approve(c.address, c.rewarder.Address(), balance); err != nil {
		return nil, fmt.Errorf("distribute %s: approve rewarder: %w", token.Hex(), err)
	}
	if err := c.rewarder.NotifyRewardAmount(c.address, token, balance); err != nil {
		return nil, fmt.Errorf("distribute %s: notify reward: %w", token.Hex(), err)
	}
	return balance, nil
}
