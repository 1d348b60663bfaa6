package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
)

// TransferEvent is emitted for every token movement, including mints.
type TransferEvent struct {
	Token  common.Address `json:"token"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *uint256.Int   `json:"amount"`
}

func (TransferEvent) EventName() string { return "Transfer" }

// ApprovalEvent is emitted when an allowance is set.
type ApprovalEvent struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  *uint256.Int   `json:"amount"`
}

func (ApprovalEvent) EventName() string { return "Approval" }

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Token is a fungible token whose state lives in a journal. Every failing
// call leaves state untouched and returns an error; there is no boolean
// success convention to check.
type Token struct {
	journal     *Journal
	address     common.Address
	name        string
	symbol      string
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
}

// NewToken creates an empty token at address.
func NewToken(journal *Journal, address common.Address, name, symbol string) *Token {
	return &Token{
		journal:     journal,
		address:     address,
		name:        name,
		symbol:      symbol,
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[allowanceKey]*uint256.Int),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply() *uint256.Int {
	return t.totalSupply.Clone()
}

// BalanceOf returns the balance of account.
func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	if b, ok := t.balances[account]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[allowanceKey{owner, spender}]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Mint creates amount new tokens for to.
func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("mint %s: %w", t.symbol, ErrZeroAddress)
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return fmt.Errorf("mint %s: total supply overflow", t.symbol)
	}
	Assign(t.journal, &t.totalSupply, supply)
	Set(t.journal, t.balances, to, new(uint256.Int).Add(t.BalanceOf(to), amount))
	t.journal.Emit(TransferEvent{Token: t.address, To: to, Amount: amount.Clone()})
	return nil
}

// Transfer moves amount from the caller to to.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	return t.move(from, to, amount)
}

// Approve lets spender move up to amount of owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("approve %s: %w", t.symbol, ErrZeroAddress)
	}
	Set(t.journal, t.allowances, allowanceKey{owner, spender}, amount.Clone())
	t.journal.Emit(ApprovalEvent{Token: t.address, Owner: owner, Spender: spender, Amount: amount.Clone()})
	return nil
}

// TransferFrom moves amount from from to to, spending spender's allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	allowance := t.Allowance(from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("transfer %s %s from %s by %s: %w",
			amount.Dec(), t.symbol, from.Hex(), spender.Hex(), ErrInsufficientAllowance)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	Set(t.journal, t.allowances, allowanceKey{from, spender}, new(uint256.Int).Sub(allowance, amount))
	return nil
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("transfer %s: %w", t.symbol, ErrZeroAddress)
	}
	balance := t.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("transfer %s %s from %s (balance %s): %w",
			amount.Dec(), t.symbol, from.Hex(), balance.Dec(), ErrInsufficientBalance)
	}
	Set(t.journal, t.balances, from, new(uint256.Int).Sub(balance, amount))
	Set(t.journal, t.balances, to, new(uint256.Int).Add(t.BalanceOf(to), amount))
	t.journal.Emit(TransferEvent{Token: t.address, From: from, To: to, Amount: amount.Clone()})
	return nil
}
