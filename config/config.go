// Package config loads the content daemon configuration from a file, the
// environment (CONTENTD_ prefix) and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"

	"github.com/cloudx-io/contentauction/core"
)

// EnvPrefix prefixes every environment variable, e.g. CONTENTD_MAX_WORKERS.
const EnvPrefix = "CONTENTD"

// Keys.
const (
	KeyListenNetwork  = "listen_network"
	KeyListenAddress  = "listen_address"
	KeyVsockPort      = "vsock_port"
	KeyMaxWorkers     = "max_workers"
	KeyReadTimeout    = "read_timeout"
	KeyLogLevel       = "log_level"
	KeyDev            = "dev"
	KeySigningKeyPath = "signing_key_path"

	KeyContentAddress     = "content.address"
	KeyContentName        = "content.name"
	KeyContentSymbol      = "content.symbol"
	KeyContentURI         = "content.uri"
	KeyOwner              = "content.owner"
	KeyTreasury           = "content.treasury"
	KeyTeam               = "content.team"
	KeyMinInitPrice       = "content.min_init_price"
	KeyIsModerated        = "content.is_moderated"
	KeyModerators         = "content.moderators"
	KeyProtocolFeeAddress = "protocol_fee_address"

	KeyQuoteAddress = "quote.address"
	KeyQuoteName    = "quote.name"
	KeyQuoteSymbol  = "quote.symbol"
	KeyUnitAddress  = "unit.address"
	KeyUnitName     = "unit.name"
	KeyUnitSymbol   = "unit.symbol"

	KeyRewarderAddress  = "rewarder.address"
	KeyRewarderDuration = "rewarder.duration"

	KeyGenesisQuote = "genesis.quote"
	KeyGenesisUnit  = "genesis.unit"
)

var ErrInvalid = errors.New("invalid configuration")

// TokenConfig describes one in-memory ERC-20.
type TokenConfig struct {
	Address common.Address
	Name    string
	Symbol  string
}

// ContentConfig describes the collection.
type ContentConfig struct {
	Address      common.Address
	Name         string
	Symbol       string
	URI          string
	Owner        common.Address
	Treasury     common.Address
	Team         common.Address
	MinInitPrice *uint256.Int
	IsModerated  bool
	Moderators   []common.Address
}

// Config is the validated daemon configuration.
type Config struct {
	ListenNetwork  string
	ListenAddress  string
	VsockPort      uint32
	MaxWorkers     int
	ReadTimeout    time.Duration
	LogLevel       string
	Dev            bool
	SigningKeyPath string

	Content            ContentConfig
	ProtocolFeeAddress common.Address
	Quote              TokenConfig
	Unit               TokenConfig

	RewarderAddress  common.Address
	RewarderDuration time.Duration

	// Genesis balances minted at startup, in base units.
	GenesisQuote map[common.Address]*uint256.Int
	GenesisUnit  map[common.Address]*uint256.Int
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyListenNetwork, "tcp")
	v.SetDefault(KeyListenAddress, "127.0.0.1:5000")
	v.SetDefault(KeyVsockPort, 5000)
	v.SetDefault(KeyMaxWorkers, 16)
	v.SetDefault(KeyReadTimeout, 30*time.Second)
	v.SetDefault(KeyLogLevel, "info")

	v.SetDefault(KeyContentAddress, "0x00000000000000000000000000000000000c0111")
	v.SetDefault(KeyContentName, "Content")
	v.SetDefault(KeyContentSymbol, "CONTENT")
	v.SetDefault(KeyMinInitPrice, "0.001")
	v.SetDefault(KeyQuoteAddress, "0x0000000000000000000000000000000000000e70")
	v.SetDefault(KeyQuoteName, "Wrapped Ether")
	v.SetDefault(KeyQuoteSymbol, "WETH")
	v.SetDefault(KeyUnitAddress, "0x000000000000000000000000000000000000a417")
	v.SetDefault(KeyUnitName, "Unit")
	v.SetDefault(KeyUnitSymbol, "UNIT")
	v.SetDefault(KeyRewarderAddress, "0x0000000000000000000000000000000000000d15")
	v.SetDefault(KeyRewarderDuration, 7*24*time.Hour)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and returns the
// validated configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	p := &parser{v: v}
	cfg := &Config{
		ListenNetwork:  v.GetString(KeyListenNetwork),
		ListenAddress:  v.GetString(KeyListenAddress),
		VsockPort:      v.GetUint32(KeyVsockPort),
		MaxWorkers:     v.GetInt(KeyMaxWorkers),
		ReadTimeout:    v.GetDuration(KeyReadTimeout),
		LogLevel:       v.GetString(KeyLogLevel),
		Dev:            v.GetBool(KeyDev),
		SigningKeyPath: v.GetString(KeySigningKeyPath),
		Content: ContentConfig{
			Address:      p.address(KeyContentAddress, true),
			Name:         v.GetString(KeyContentName),
			Symbol:       v.GetString(KeyContentSymbol),
			URI:          v.GetString(KeyContentURI),
			Owner:        p.address(KeyOwner, true),
			Treasury:     p.address(KeyTreasury, true),
			Team:         p.address(KeyTeam, true),
			MinInitPrice: p.units(KeyMinInitPrice),
			IsModerated:  v.GetBool(KeyIsModerated),
			Moderators:   p.addresses(KeyModerators),
		},
		ProtocolFeeAddress: p.address(KeyProtocolFeeAddress, false),
		Quote: TokenConfig{
			Address: p.address(KeyQuoteAddress, true),
			Name:    v.GetString(KeyQuoteName),
			Symbol:  v.GetString(KeyQuoteSymbol),
		},
		Unit: TokenConfig{
			Address: p.address(KeyUnitAddress, true),
			Name:    v.GetString(KeyUnitName),
			Symbol:  v.GetString(KeyUnitSymbol),
		},
		RewarderAddress:  p.address(KeyRewarderAddress, true),
		RewarderDuration: v.GetDuration(KeyRewarderDuration),
		GenesisQuote:     p.balances(KeyGenesisQuote),
		GenesisUnit:      p.balances(KeyGenesisUnit),
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints of c.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.ListenNetwork {
	case "tcp":
		if c.ListenAddress == "" {
			invalid("%s is required for tcp", KeyListenAddress)
		}
	case "vsock":
		if c.VsockPort == 0 {
			invalid("%s is required for vsock", KeyVsockPort)
		}
	default:
		invalid("%s must be tcp or vsock, got %q", KeyListenNetwork, c.ListenNetwork)
	}
	if c.MaxWorkers <= 0 {
		invalid("%s must be positive, got %d", KeyMaxWorkers, c.MaxWorkers)
	}
	if c.ReadTimeout <= 0 {
		invalid("%s must be positive", KeyReadTimeout)
	}
	if c.Content.MinInitPrice != nil {
		if c.Content.MinInitPrice.IsZero() {
			invalid("%s must be positive", KeyMinInitPrice)
		} else if c.Content.MinInitPrice.Gt(core.AbsMaxInitPrice) {
			invalid("%s exceeds the maximum init price", KeyMinInitPrice)
		}
	}
	if c.Quote.Address == c.Unit.Address {
		invalid("%s and %s must differ", KeyQuoteAddress, KeyUnitAddress)
	}
	if c.RewarderDuration < time.Second {
		invalid("%s must be at least one second", KeyRewarderDuration)
	}
	return errors.Join(errs...)
}

// RewarderDurationSeconds returns the reward stream length in whole seconds.
func (c *Config) RewarderDurationSeconds() uint64 {
	return uint64(c.RewarderDuration / time.Second)
}

// parser collects every parse error instead of stopping at the first.
type parser struct {
	v    *viper.Viper
	errs []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
}

func (p *parser) address(key string, required bool) common.Address {
	s := p.v.GetString(key)
	if s == "" {
		if required {
			p.fail(key, errors.New("is required"))
		}
		return common.Address{}
	}
	if !common.IsHexAddress(s) {
		p.fail(key, fmt.Errorf("invalid address %q", s))
		return common.Address{}
	}
	addr := common.HexToAddress(s)
	if required && addr == (common.Address{}) {
		p.fail(key, errors.New("must not be the zero address"))
	}
	return addr
}

func (p *parser) addresses(key string) []common.Address {
	var out []common.Address
	for _, s := range p.v.GetStringSlice(key) {
		if !common.IsHexAddress(s) {
			p.fail(key, fmt.Errorf("invalid address %q", s))
			continue
		}
		out = append(out, common.HexToAddress(s))
	}
	return out
}

func (p *parser) units(key string) *uint256.Int {
	amount, err := core.ParseUnits(p.v.GetString(key))
	if err != nil {
		p.fail(key, err)
		return nil
	}
	return amount
}

// balances reads a map of account to human decimal amount.
func (p *parser) balances(key string) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int)
	for account, amount := range p.v.GetStringMapString(key) {
		if !common.IsHexAddress(account) {
			p.fail(key, fmt.Errorf("invalid address %q", account))
			continue
		}
		value, err := core.ParseUnits(amount)
		if err != nil {
			p.fail(key+"."+account, err)
			continue
		}
		out[common.HexToAddress(account)] = value
	}
	return out
}
