// Package rewarder distributes reward tokens to stakers in proportion to
// their stake weight over a fixed duration. Stake weight is managed
// exclusively by the content core; anyone may fund a reward stream.
package rewarder

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/contentauction/ledger"
)

var (
	ErrNotContent              = errors.New("caller is not the content contract")
	ErrZeroAmount              = errors.New("zero amount")
	ErrInsufficientStake       = errors.New("insufficient stake")
	ErrUnknownToken            = errors.New("unknown token")
	ErrNotRewardToken          = errors.New("token is not a reward token")
	ErrRewardTokenAlreadyAdded = errors.New("reward token already added")
	ErrRewardAmountTooSmall    = errors.New("reward amount is smaller than the reward duration")
)

// DefaultDuration is the length of a reward stream in seconds (7 days).
const DefaultDuration uint64 = 7 * 24 * 60 * 60

var precision = uint256.NewInt(1_000_000_000_000_000_000)

// ERC20 is the token surface the rewarder needs to pull and pay rewards.
type ERC20 interface {
	Address() common.Address
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

type rewardState struct {
	periodFinish         uint64
	rewardRate           *uint256.Int
	lastUpdateTime       uint64
	rewardPerTokenStored *uint256.Int
}

type accountToken struct {
	account common.Address
	token   common.Address
}

// Rewarder is a multi-token staking rewards pool whose state lives in a
// ledger journal.
type Rewarder struct {
	journal  *ledger.Journal
	clock    ledger.Clock
	address  common.Address
	content  common.Address
	duration uint64

	tokens       map[common.Address]ERC20
	rewardTokens []common.Address
	rewardData   map[common.Address]rewardState

	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	paid        map[accountToken]*uint256.Int
	rewards     map[accountToken]*uint256.Int
}

// Config configures a Rewarder.
type Config struct {
	Address  common.Address
	Content  common.Address
	Duration uint64
	// Tokens are the assets that may later be registered with AddReward.
	Tokens []ERC20
}

// New creates a Rewarder. A zero Duration selects DefaultDuration.
func New(journal *ledger.Journal, clock ledger.Clock, cfg Config) (*Rewarder, error) {
	if cfg.Address == (common.Address{}) || cfg.Content == (common.Address{}) {
		return nil, fmt.Errorf("new rewarder: %w", ledger.ErrZeroAddress)
	}
	duration := cfg.Duration
	if duration == 0 {
		duration = DefaultDuration
	}

	tokens := make(map[common.Address]ERC20, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		tokens[tok.Address()] = tok
	}

	return &Rewarder{
		journal:     journal,
		clock:       clock,
		address:     cfg.Address,
		content:     cfg.Content,
		duration:    duration,
		tokens:      tokens,
		rewardData:  make(map[common.Address]rewardState),
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
		paid:        make(map[accountToken]*uint256.Int),
		rewards:     make(map[accountToken]*uint256.Int),
	}, nil
}

// Address returns the rewarder's account.
func (r *Rewarder) Address() common.Address { return r.address }

// Duration returns the length of every reward stream in seconds.
func (r *Rewarder) Duration() uint64 { return r.duration }

// RewardTokens lists the registered reward tokens in registration order.
func (r *Rewarder) RewardTokens() []common.Address {
	return slices.Clone(r.rewardTokens)
}

// TotalSupply returns the sum of all stake weights.
func (r *Rewarder) TotalSupply() *uint256.Int {
	return r.totalSupply.Clone()
}

// BalanceOf returns account's stake weight.
func (r *Rewarder) BalanceOf(account common.Address) *uint256.Int {
	if b, ok := r.balances[account]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// IsRewardToken reports whether token has been registered.
func (r *Rewarder) IsRewardToken(token common.Address) bool {
	_, ok := r.rewardData[token]
	return ok
}

// AddReward registers token as a reward token. Only the content contract may call it.
func (r *Rewarder) AddReward(caller, token common.Address) error {
	if caller != r.content {
		return fmt.Errorf("add reward: %w", ErrNotContent)
	}
	if _, ok := r.tokens[token]; !ok {
		return fmt.Errorf("add reward %s: %w", token.Hex(), ErrUnknownToken)
	}
	if r.IsRewardToken(token) {
		return fmt.Errorf("add reward %s: %w", token.Hex(), ErrRewardTokenAlreadyAdded)
	}

	ledger.Set(r.journal, r.rewardData, token, rewardState{
		rewardRate:           new(uint256.Int),
		rewardPerTokenStored: new(uint256.Int),
	})
	ledger.Assign(r.journal, &r.rewardTokens, append(slices.Clone(r.rewardTokens), token))
	r.journal.Emit(RewardAddedEvent{Token: token})
	return nil
}

// Deposit adds amount to account's stake weight. Only the content contract may call it.
func (r *Rewarder) Deposit(caller, account common.Address, amount *uint256.Int) error {
	if caller != r.content {
		return fmt.Errorf("deposit: %w", ErrNotContent)
	}
	if amount.IsZero() {
		return fmt.Errorf("deposit: %w", ErrZeroAmount)
	}

	r.updateReward(account)
	ledger.Assign(r.journal, &r.totalSupply, new(uint256.Int).Add(r.totalSupply, amount))
	ledger.Set(r.journal, r.balances, account, new(uint256.Int).Add(r.BalanceOf(account), amount))
	r.journal.Emit(DepositedEvent{Account: account, Amount: amount.Clone()})
	return nil
}

// Withdraw removes amount from account's stake weight. Only the content contract may call it.
func (r *Rewarder) Withdraw(caller, account common.Address, amount *uint256.Int) error {
	if caller != r.content {
		return fmt.Errorf("withdraw: %w", ErrNotContent)
	}
	if amount.IsZero() {
		return fmt.Errorf("withdraw: %w", ErrZeroAmount)
	}
	balance := r.BalanceOf(account)
	if balance.Lt(amount) {
		return fmt.Errorf("withdraw %s from %s (stake %s): %w", amount.Dec(), account.Hex(), balance.Dec(), ErrInsufficientStake)
	}

	r.updateReward(account)
	ledger.Assign(r.journal, &r.totalSupply, new(uint256.Int).Sub(r.totalSupply, amount))
	ledger.Set(r.journal, r.balances, account, new(uint256.Int).Sub(balance, amount))
	r.journal.Emit(WithdrawnEvent{Account: account, Amount: amount.Clone()})
	return nil
}

// NotifyRewardAmount pulls amount of token from caller and streams it to
// stakers over the reward duration, rolling any undistributed remainder of
// the current stream into the new one.
func (r *Rewarder) NotifyRewardAmount(caller, token common.Address, amount *uint256.Int) error {
	if !r.IsRewardToken(token) {
		return fmt.Errorf("notify reward %s: %w", token.Hex(), ErrNotRewardToken)
	}
	if amount.Lt(uint256.NewInt(r.duration)) {
		return fmt.Errorf("notify reward %s of %s: %w", token.Hex(), amount.Dec(), ErrRewardAmountTooSmall)
	}

	r.updateReward(common.Address{})

	if err := r.tokens[token].TransferFrom(r.address, caller, r.address, amount); err != nil {
		return fmt.Errorf("notify reward %s: %w", token.Hex(), err)
	}

	now := r.clock.Now()
	state := r.rewardData[token]
	total := amount.Clone()
	if now < state.periodFinish {
		total.Add(total, r.left(state, now))
	}

	ledger.Set(r.journal, r.rewardData, token, rewardState{
		periodFinish:         now + r.duration,
		rewardRate:           total.Div(total, uint256.NewInt(r.duration)),
		lastUpdateTime:       now,
		rewardPerTokenStored: state.rewardPerTokenStored,
	})
	r.journal.Emit(RewardNotifiedEvent{Token: token, Funder: caller, Amount: amount.Clone()})
	return nil
}

// Left returns the amount of token still to be streamed by the current period.
func (r *Rewarder) Left(token common.Address) *uint256.Int {
	state, ok := r.rewardData[token]
	if !ok {
		return new(uint256.Int)
	}
	return r.left(state, r.clock.Now())
}

func (r *Rewarder) left(state rewardState, now uint64) *uint256.Int {
	if now >= state.periodFinish {
		return new(uint256.Int)
	}
	return new(uint256.Int).Mul(uint256.NewInt(state.periodFinish-now), state.rewardRate)
}

// Earned returns the rewards of token accrued to account and not yet paid out.
func (r *Rewarder) Earned(account, token common.Address) *uint256.Int {
	state, ok := r.rewardData[token]
	if !ok {
		return new(uint256.Int)
	}
	return r.earned(account, token, r.rewardPerToken(state))
}

// GetReward pays account every reward it has accrued.
func (r *Rewarder) GetReward(account common.Address) error {
	r.updateReward(account)

	for _, token := range r.rewardTokens {
		key := accountToken{account, token}
		reward, ok := r.rewards[key]
		if !ok || reward.IsZero() {
			continue
		}
		ledger.Set(r.journal, r.rewards, key, new(uint256.Int))
		if err := r.tokens[token].Transfer(r.address, account, reward); err != nil {
			return fmt.Errorf("pay reward %s to %s: %w", token.Hex(), account.Hex(), err)
		}
		r.journal.Emit(RewardPaidEvent{Account: account, Token: token, Amount: reward.Clone()})
	}
	return nil
}

func (r *Rewarder) lastTimeRewardApplicable(state rewardState) uint64 {
	return min(r.clock.Now(), state.periodFinish)
}

func (r *Rewarder) rewardPerToken(state rewardState) *uint256.Int {
	if r.totalSupply.IsZero() {
		return state.rewardPerTokenStored.Clone()
	}
	last := r.lastTimeRewardApplicable(state)
	if last <= state.lastUpdateTime {
		return state.rewardPerTokenStored.Clone()
	}

	accrued := new(uint256.Int).Mul(uint256.NewInt(last-state.lastUpdateTime), state.rewardRate)
	accrued.Mul(accrued, precision)
	accrued.Div(accrued, r.totalSupply)
	return accrued.Add(accrued, state.rewardPerTokenStored)
}

func (r *Rewarder) earned(account, token common.Address, rewardPerToken *uint256.Int) *uint256.Int {
	key := accountToken{account, token}

	paid, ok := r.paid[key]
	if !ok {
		paid = new(uint256.Int)
	}
	delta := new(uint256.Int).Sub(rewardPerToken, paid)
	earned := new(uint256.Int).Mul(r.BalanceOf(account), delta)
	earned.Div(earned, precision)

	if stored, ok := r.rewards[key]; ok {
		earned.Add(earned, stored)
	}
	return earned
}

// updateReward checkpoints every reward stream and, for a non-zero account,
// that account's accrued rewards.
func (r *Rewarder) updateReward(account common.Address) {
	for _, token := range r.rewardTokens {
		state := r.rewardData[token]
		rpt := r.rewardPerToken(state)
		ledger.Set(r.journal, r.rewardData, token, rewardState{
			periodFinish:         state.periodFinish,
			rewardRate:           state.rewardRate,
			lastUpdateTime:       r.lastTimeRewardApplicable(state),
			rewardPerTokenStored: rpt,
		})

		if account != (common.Address{}) {
			key := accountToken{account, token}
			ledger.Set(r.journal, r.rewards, key, r.earned(account, token, rpt))
			ledger.Set(r.journal, r.paid, key, rpt.Clone())
		}
	}
}
