package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/cloudx-io/contentauction/config"
	"github.com/cloudx-io/contentauction/content"
	"github.com/cloudx-io/contentauction/core"
	"github.com/cloudx-io/contentauction/ledger"
	"github.com/cloudx-io/contentauction/rewarder"
	"github.com/cloudx-io/contentauction/server"
)

// newLogger builds the daemon logger from the log_level and dev settings.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.KeyLogLevel, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Dev {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	return zcfg.Build()
}

// loadKeys reads the signing key, or generates an ephemeral one when no path
// is configured.
func loadKeys(cfg *config.Config, logger *zap.Logger) (*server.KeyManager, error) {
	if cfg.SigningKeyPath == "" {
		logger.Warn("no signing key configured, receipts are signed with an ephemeral key")
		return server.NewKeyManager()
	}
	keys, err := server.LoadKeyManager(cfg.SigningKeyPath)
	if err != nil {
		return nil, err
	}
	logger.Info("signing key loaded", zap.String("path", cfg.SigningKeyPath))
	return keys, nil
}

// newServer wires the ledger, tokens, rewarder and content collection
// described by cfg into a Server. Genesis balances are minted and committed
// before the server accepts requests.
func newServer(cfg *config.Config, keys *server.KeyManager, clock ledger.Clock, logger *zap.Logger) (*server.Server, error) {
	journal := ledger.NewJournal()

	quote := ledger.NewToken(journal, cfg.Quote.Address, cfg.Quote.Name, cfg.Quote.Symbol)
	unit := ledger.NewToken(journal, cfg.Unit.Address, cfg.Unit.Name, cfg.Unit.Symbol)

	rwd, err := rewarder.New(journal, clock, rewarder.Config{
		Address:  cfg.RewarderAddress,
		Content:  cfg.Content.Address,
		Duration: cfg.RewarderDurationSeconds(),
		Tokens:   []rewarder.ERC20{quote, unit},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rewarder: %w", err)
	}

	minInitPrice := cfg.Content.MinInitPrice
	if minInitPrice == nil {
		minInitPrice = new(uint256.Int)
	}

	c, err := content.New(journal, content.Config{
		Address:      cfg.Content.Address,
		Name:         cfg.Content.Name,
		Symbol:       cfg.Content.Symbol,
		URI:          cfg.Content.URI,
		Owner:        cfg.Content.Owner,
		Treasury:     cfg.Content.Treasury,
		Team:         cfg.Content.Team,
		Quote:        quote,
		Unit:         unit,
		Rewarder:     rwd,
		Registry:     content.StaticRegistry{ProtocolFee: cfg.ProtocolFeeAddress},
		MinInitPrice: minInitPrice,
		IsModerated:  cfg.Content.IsModerated,
		Clock:        clock,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create content: %w", err)
	}

	if len(cfg.Content.Moderators) > 0 {
		if err := c.SetModerators(cfg.Content.Owner, cfg.Content.Moderators, true); err != nil {
			return nil, fmt.Errorf("failed to set moderators: %w", err)
		}
	}

	if err := mintGenesis(quote, cfg.GenesisQuote, logger); err != nil {
		return nil, err
	}
	if err := mintGenesis(unit, cfg.GenesisUnit, logger); err != nil {
		return nil, err
	}
	journal.Reset()

	logger.Info("content initialized",
		zap.Stringer("content", cfg.Content.Address),
		zap.Stringer("owner", cfg.Content.Owner),
		zap.String("min_init_price", core.FormatUnits(minInitPrice)),
		zap.Bool("is_moderated", cfg.Content.IsModerated),
		zap.Bool("protocol_fee", cfg.ProtocolFeeAddress != (common.Address{})),
		zap.Uint64("rewarder_duration", rwd.Duration()),
	)

	return server.New(server.Config{
		MaxWorkers:  cfg.MaxWorkers,
		ReadTimeout: cfg.ReadTimeout,
	}, server.Deps{
		Executor: ledger.NewExecutor(journal),
		Content:  c,
		Quote:    quote,
		Unit:     unit,
		Rewarder: rwd,
		Keys:     keys,
		Clock:    clock,
		Logger:   logger,
	})
}

func mintGenesis(token *ledger.Token, balances map[common.Address]*uint256.Int, logger *zap.Logger) error {
	accounts := slices.SortedFunc(maps.Keys(balances), func(a, b common.Address) int {
		return a.Cmp(b)
	})
	for _, account := range accounts {
		if err := token.Mint(account, balances[account]); err != nil {
			return fmt.Errorf("failed to mint genesis %s to %s: %w", token.Symbol(), account.Hex(), err)
		}
		logger.Debug("genesis balance minted",
			zap.String("token", token.Symbol()),
			zap.Stringer("account", account),
			zap.String("amount", core.FormatUnits(balances[account])),
		)
	}
	return nil
}
