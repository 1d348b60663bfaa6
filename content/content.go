// Package content implements a collection of continuously re-auctioned
// tokens. Every token is always for sale through a dutch auction; buying it
// ("collecting") moves ownership, splits the price between the previous
// owner, creator, team, protocol and treasury, and makes the price paid the
// new owner's stake weight in an external rewarder.
package content

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/cloudx-io/contentauction/core"
	"github.com/cloudx-io/contentauction/ledger"
)

// ERC20 is the fungible token surface used for the quote and unit assets.
type ERC20 interface {
	Address() common.Address
	BalanceOf(account common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	Approve(owner, spender common.Address, amount *uint256.Int) error
}

// Rewarder receives stake weight changes and reward funding.
type Rewarder interface {
	Address() common.Address
	Deposit(caller, account common.Address, amount *uint256.Int) error
	Withdraw(caller, account common.Address, amount *uint256.Int) error
	AddReward(caller, token common.Address) error
	NotifyRewardAmount(caller, token common.Address, amount *uint256.Int) error
	Left(token common.Address) *uint256.Int
	Duration() uint64
}

// Registry is the read-only view of the protocol registry.
type Registry interface {
	// ProtocolFeeAddress returns the protocol fee recipient, or the zero
	// address when no protocol fee is charged.
	ProtocolFeeAddress() common.Address
}

// StaticRegistry is a Registry with a fixed protocol fee recipient.
type StaticRegistry struct {
	ProtocolFee common.Address
}

func (r StaticRegistry) ProtocolFeeAddress() common.Address { return r.ProtocolFee }

// Config configures a Content collection.
type Config struct {
	Address common.Address
	Name    string
	Symbol  string
	URI     string

	Owner    common.Address
	Treasury common.Address
	Team     common.Address

	Quote    ERC20
	Unit     ERC20
	Rewarder Rewarder
	Registry Registry

	MinInitPrice *uint256.Int
	IsModerated  bool

	Clock  ledger.Clock
	Logger *zap.Logger
}

type tokenRecord struct {
	creator  common.Address
	owner    common.Address
	uri      string
	approved bool
	stake    *uint256.Int
	auction  core.Auction
}

// Content is a collection of dutch-auctioned tokens. All state lives in a
// ledger journal; callers serialize access (see ledger.Executor).
type Content struct {
	journal *ledger.Journal
	clock   ledger.Clock
	log     *zap.Logger

	address      common.Address
	name         string
	symbol       string
	quote        ERC20
	unit         ERC20
	rewarder     Rewarder
	registry     Registry
	minInitPrice *uint256.Int

	// entered guards collect and distribute against re-entry from collaborators.
	entered bool

	uri         string
	owner       common.Address
	treasury    common.Address
	team        common.Address
	isModerated bool
	moderators  map[common.Address]bool

	nextTokenID uint64
	tokens      map[uint64]tokenRecord
	balances    map[common.Address]uint64
}

// New validates cfg, creates the collection and registers the quote and unit
// assets as reward tokens with the rewarder.
func New(journal *ledger.Journal, cfg Config) (*Content, error) {
	if cfg.Address == (common.Address{}) || cfg.Owner == (common.Address{}) ||
		cfg.Treasury == (common.Address{}) || cfg.Team == (common.Address{}) {
		return nil, fmt.Errorf("new content: %w", ErrZeroAddress)
	}
	if cfg.Quote == nil || cfg.Unit == nil || cfg.Rewarder == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("new content: missing collaborator: %w", ErrInvalidConfig)
	}
	if cfg.Quote.Address() == cfg.Unit.Address() {
		return nil, fmt.Errorf("new content: quote and unit are the same token: %w", ErrInvalidConfig)
	}
	if cfg.MinInitPrice == nil || cfg.MinInitPrice.IsZero() {
		return nil, fmt.Errorf("new content: %w", ErrZeroMinPrice)
	}
	if cfg.MinInitPrice.Gt(core.AbsMaxInitPrice) {
		return nil, fmt.Errorf("new content: %w", ErrInitPriceExceedsMax)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Content{
		journal:      journal,
		clock:        clock,
		log:          logger.With(zap.String("module", "content"), zap.String("content", cfg.Address.Hex())),
		address:      cfg.Address,
		name:         cfg.Name,
		symbol:       cfg.Symbol,
		quote:        cfg.Quote,
		unit:         cfg.Unit,
		rewarder:     cfg.Rewarder,
		registry:     cfg.Registry,
		minInitPrice: cfg.MinInitPrice.Clone(),
		uri:          cfg.URI,
		owner:        cfg.Owner,
		treasury:     cfg.Treasury,
		team:         cfg.Team,
		isModerated:  cfg.IsModerated,
		moderators:   make(map[common.Address]bool),
		tokens:       make(map[uint64]tokenRecord),
		balances:     make(map[common.Address]uint64),
	}

	for _, asset := range []ERC20{c.quote, c.unit} {
		if err := c.rewarder.AddReward(c.address, asset.Address()); err != nil {
			return nil, fmt.Errorf("new content: register reward token %s: %w", asset.Address().Hex(), err)
		}
	}

	c.log.Info("content created",
		zap.String("name", c.name),
		zap.String("min_init_price", core.FormatUnits(c.minInitPrice)),
		zap.Bool("is_moderated", c.isModerated),
	)
	return c, nil
}

// Create mints a new token to to with metadata uri. to becomes both creator
// and first owner; the token starts at epoch 0 priced at the collection
// minimum and is approved unless the collection is moderated.
func (c *Content) Create(sender, to common.Address, uri string) (uint64, error) {
	if to == (common.Address{}) {
		return 0, fmt.Errorf("create: %w", ErrZeroTo)
	}
	if uri == "" {
		return 0, fmt.Errorf("create: %w", ErrZeroLengthURI)
	}

	tokenID := c.nextTokenID + 1
	ledger.Assign(c.journal, &c.nextTokenID, tokenID)
	ledger.Set(c.journal, c.tokens, tokenID, tokenRecord{
		creator:  to,
		owner:    to,
		uri:      uri,
		approved: !c.isModerated,
		stake:    new(uint256.Int),
		auction: core.Auction{
			EpochID:   0,
			InitPrice: c.minInitPrice.Clone(),
			StartTime: c.clock.Now(),
		},
	})
	ledger.Set(c.journal, c.balances, to, c.balances[to]+1)

	c.journal.Emit(TransferEvent{To: to, TokenID: tokenID})
	c.journal.Emit(CreatedEvent{Who: sender, To: to, TokenID: tokenID, URI: uri})

	c.log.Info("token created", zap.Uint64("token_id", tokenID), zap.String("to", to.Hex()), zap.String("uri", uri))
	return tokenID, nil
}

func (c *Content) token(tokenID uint64) (tokenRecord, error) {
	rec, ok := c.tokens[tokenID]
	if !ok {
		return tokenRecord{}, fmt.Errorf("token %d: %w", tokenID, ErrTokenNotFound)
	}
	return rec, nil
}

// GetAuction returns the auction state of tokenID.
func (c *Content) GetAuction(tokenID uint64) (core.Auction, error) {
	rec, err := c.token(tokenID)
	if err != nil {
		return core.Auction{}, err
	}
	return rec.auction.Clone(), nil
}

// GetPrice returns the current dutch auction price of tokenID.
func (c *Content) GetPrice(tokenID uint64) (*uint256.Int, error) {
	rec, err := c.token(tokenID)
	if err != nil {
		return nil, err
	}
	return core.PriceAt(rec.auction, c.clock.Now()), nil
}

// OwnerOf returns the current holder of tokenID.
func (c *Content) OwnerOf(tokenID uint64) (common.Address, error) {
	rec, err := c.token(tokenID)
	return rec.owner, err
}

// CreatorOf returns the account tokenID was minted to.
func (c *Content) CreatorOf(tokenID uint64) (common.Address, error) {
	rec, err := c.token(tokenID)
	return rec.creator, err
}

// TokenURI returns the metadata uri of tokenID.
func (c *Content) TokenURI(tokenID uint64) (string, error) {
	rec, err := c.token(tokenID)
	return rec.uri, err
}

// IsApproved reports whether tokenID may be collected.
func (c *Content) IsApproved(tokenID uint64) (bool, error) {
	rec, err := c.token(tokenID)
	return rec.approved, err
}

// Stake returns the price paid at the last collection of tokenID. The value
// is kept as history after the rewarder weight has been withdrawn.
func (c *Content) Stake(tokenID uint64) (*uint256.Int, error) {
	rec, err := c.token(tokenID)
	if err != nil {
		return nil, err
	}
	return rec.stake.Clone(), nil
}

// BalanceOf returns the number of tokens held by owner.
func (c *Content) BalanceOf(owner common.Address) uint64 {
	return c.balances[owner]
}

// TokensOf lists the ids held by owner in ascending order.
func (c *Content) TokensOf(owner common.Address) []uint64 {
	ids := make([]uint64, 0, c.balances[owner])
	for id, rec := range c.tokens {
		if rec.owner == owner {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// TotalSupply returns the number of tokens minted. Tokens are never burned.
func (c *Content) TotalSupply() uint64 { return c.nextTokenID }

// NextTokenID returns the id the next Create will assign.
func (c *Content) NextTokenID() uint64 { return c.nextTokenID + 1 }

func (c *Content) Address() common.Address  { return c.address }
func (c *Content) Name() string             { return c.name }
func (c *Content) Symbol() string           { return c.symbol }
func (c *Content) ContractURI() string      { return c.uri }
func (c *Content) Owner() common.Address    { return c.owner }
func (c *Content) Treasury() common.Address { return c.treasury }
func (c *Content) Team() common.Address     { return c.team }
func (c *Content) IsModerated() bool        { return c.isModerated }
func (c *Content) Quote() ERC20             { return c.quote }
func (c *Content) Unit() ERC20              { return c.unit }

// ProtocolFeeAddress returns the registry's protocol fee recipient, or the
// zero address when no protocol fee is charged.
func (c *Content) ProtocolFeeAddress() common.Address { return c.registry.ProtocolFeeAddress() }

// MinInitPrice returns the floor of every epoch's starting price.
func (c *Content) MinInitPrice() *uint256.Int { return c.minInitPrice.Clone() }

// IsModerator reports whether account may approve tokens.
func (c *Content) IsModerator(account common.Address) bool {
	return c.moderators[account]
}
