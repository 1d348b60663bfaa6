package rewarder

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/contentauction/ledger"
)

const testDuration uint64 = 100

var (
	rewarderAddr = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	contentAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	quoteAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	otherAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e3")
	funder       = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	alice        = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type fixture struct {
	journal  *ledger.Journal
	clock    *ledger.ManualClock
	quote    *ledger.Token
	rewarder *Rewarder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j := ledger.NewJournal()
	clock := ledger.NewManualClock(1_000)
	quote := ledger.NewToken(j, quoteAddr, "Wrapped Ether", "WETH")
	other := ledger.NewToken(j, otherAddr, "Other", "OTH")

	r, err := New(j, clock, Config{
		Address:  rewarderAddr,
		Content:  contentAddr,
		Duration: testDuration,
		Tokens:   []ERC20{quote, other},
	})
	assert.NoError(t, err)
	assert.NoError(t, r.AddReward(contentAddr, quoteAddr))

	assert.NoError(t, quote.Mint(funder, uint256.NewInt(1_000_000)))
	assert.NoError(t, quote.Approve(funder, rewarderAddr, uint256.NewInt(1_000_000)))

	return &fixture{journal: j, clock: clock, quote: quote, rewarder: r}
}

func TestNew_Validation(t *testing.T) {
	j := ledger.NewJournal()
	_, err := New(j, ledger.NewManualClock(0), Config{Content: contentAddr})
	check.True(t, errors.Is(err, ledger.ErrZeroAddress))

	r, err := New(j, ledger.NewManualClock(0), Config{Address: rewarderAddr, Content: contentAddr})
	assert.NoError(t, err)
	check.Equal(t, DefaultDuration, r.Duration())
}

func TestAddReward(t *testing.T) {
	f := newFixture(t)

	err := f.rewarder.AddReward(alice, otherAddr)
	check.True(t, errors.Is(err, ErrNotContent))

	err = f.rewarder.AddReward(contentAddr, common.HexToAddress("0x1234"))
	check.True(t, errors.Is(err, ErrUnknownToken))

	err = f.rewarder.AddReward(contentAddr, quoteAddr)
	check.True(t, errors.Is(err, ErrRewardTokenAlreadyAdded))

	assert.NoError(t, f.rewarder.AddReward(contentAddr, otherAddr))
	check.Equal(t, []common.Address{quoteAddr, otherAddr}, f.rewarder.RewardTokens())
}

func TestDepositWithdraw(t *testing.T) {
	f := newFixture(t)

	err := f.rewarder.Deposit(alice, alice, uint256.NewInt(5))
	check.True(t, errors.Is(err, ErrNotContent))

	err = f.rewarder.Deposit(contentAddr, alice, new(uint256.Int))
	check.True(t, errors.Is(err, ErrZeroAmount))

	assert.NoError(t, f.rewarder.Deposit(contentAddr, alice, uint256.NewInt(5)))
	assert.NoError(t, f.rewarder.Deposit(contentAddr, bob, uint256.NewInt(3)))
	check.Equal(t, uint64(8), f.rewarder.TotalSupply().Uint64())

	err = f.rewarder.Withdraw(contentAddr, alice, uint256.NewInt(6))
	check.True(t, errors.Is(err, ErrInsufficientStake))

	assert.NoError(t, f.rewarder.Withdraw(contentAddr, alice, uint256.NewInt(5)))
	check.True(t, f.rewarder.BalanceOf(alice).IsZero())
	check.Equal(t, uint64(3), f.rewarder.TotalSupply().Uint64())
}

func TestNotifyRewardAmount_TooSmall(t *testing.T) {
	f := newFixture(t)
	err := f.rewarder.NotifyRewardAmount(funder, quoteAddr, uint256.NewInt(testDuration-1))
	check.True(t, errors.Is(err, ErrRewardAmountTooSmall))
}

func TestNotifyRewardAmount_NotRewardToken(t *testing.T) {
	f := newFixture(t)
	err := f.rewarder.NotifyRewardAmount(funder, otherAddr, uint256.NewInt(1_000))
	check.True(t, errors.Is(err, ErrNotRewardToken))
}

func TestNotifyRewardAmount_PullsFundsAndStreams(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.rewarder.NotifyRewardAmount(funder, quoteAddr, uint256.NewInt(1_000)))
	check.Equal(t, uint64(1_000), f.quote.BalanceOf(rewarderAddr).Uint64())
	check.Equal(t, uint64(1_000), f.rewarder.Left(quoteAddr).Uint64())

	f.clock.Advance(40)
	check.Equal(t, uint64(600), f.rewarder.Left(quoteAddr).Uint64())

	f.clock.Advance(testDuration)
	check.True(t, f.rewarder.Left(quoteAddr).IsZero())
}

func TestNotifyRewardAmount_RollsOverRemainder(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.rewarder.NotifyRewardAmount(funder, quoteAddr, uint256.NewInt(1_000)))
	f.clock.Advance(50)
	assert.NoError(t, f.rewarder.NotifyRewardAmount(funder, quoteAddr, uint256.NewInt(1_000)))

	check.Equal(t, uint64(1_500), f.rewarder.Left(quoteAddr).Uint64())
}

func TestNotifyRewardAmount_FailedPullLeavesNoTrace(t *testing.T) {
	f := newFixture(t)

	snap := f.journal.Snapshot()
	err := f.rewarder.NotifyRewardAmount(alice, quoteAddr, uint256.NewInt(1_000))
	check.True(t, errors.Is(err, ledger.ErrInsufficientAllowance))
	f.journal.RevertToSnapshot(snap)

	check.True(t, f.rewarder.Left(quoteAddr).IsZero())
}

func TestEarnedAndGetReward(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.rewarder.Deposit(contentAddr, alice, uint256.NewInt(1)))
	assert.NoError(t, f.rewarder.NotifyRewardAmount(funder, quoteAddr, uint256.NewInt(1_000)))

	f.clock.Advance(50)
	check.Equal(t, uint64(500), f.rewarder.Earned(alice, quoteAddr).Uint64())

	assert.NoError(t, f.rewarder.Deposit(contentAddr, bob, uint256.NewInt(1)))
	f.clock.Advance(50)

	check.Equal(t, uint64(750), f.rewarder.Earned(alice, quoteAddr).Uint64())
	check.Equal(t, uint64(250), f.rewarder.Earned(bob, quoteAddr).Uint64())

	assert.NoError(t, f.rewarder.GetReward(alice))
	check.Equal(t, uint64(750), f.quote.BalanceOf(alice).Uint64())
	check.True(t, f.rewarder.Earned(alice, quoteAddr).IsZero())

	// Stream is over: nothing more accrues.
	f.clock.Advance(1_000)
	check.Equal(t, uint64(250), f.rewarder.Earned(bob, quoteAddr).Uint64())
}

func TestEarned_WithdrawnStakeStopsAccruing(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.rewarder.Deposit(contentAddr, alice, uint256.NewInt(2)))
	assert.NoError(t, f.rewarder.NotifyRewardAmount(funder, quoteAddr, uint256.NewInt(1_000)))

	f.clock.Advance(10)
	assert.NoError(t, f.rewarder.Withdraw(contentAddr, alice, uint256.NewInt(2)))
	f.clock.Advance(50)

	check.Equal(t, uint64(100), f.rewarder.Earned(alice, quoteAddr).Uint64())
}
