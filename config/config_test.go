package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

const validYAML = `
listen_network: tcp
listen_address: 127.0.0.1:7000
max_workers: 8
content:
  name: Stolen Content
  symbol: STEAL
  uri: ipfs://collection
  owner: "0x0000000000000000000000000000000000000001"
  treasury: "0x0000000000000000000000000000000000000002"
  team: "0x0000000000000000000000000000000000000003"
  min_init_price: "0.002"
  is_moderated: true
  moderators:
    - "0x0000000000000000000000000000000000000005"
protocol_fee_address: "0x0000000000000000000000000000000000000004"
rewarder:
  duration: 1h
genesis:
  quote:
    "0x0000000000000000000000000000000000000b0b": "10"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contentd.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(NewViper(), writeConfig(t, validYAML))
	assert.NoError(t, err)

	check.Equal(t, "tcp", cfg.ListenNetwork)
	check.Equal(t, "127.0.0.1:7000", cfg.ListenAddress)
	check.Equal(t, 8, cfg.MaxWorkers)
	check.Equal(t, 30*time.Second, cfg.ReadTimeout)
	check.Equal(t, "Stolen Content", cfg.Content.Name)
	check.Equal(t, common.HexToAddress("0x1"), cfg.Content.Owner)
	check.Equal(t, "2000000000000000", cfg.Content.MinInitPrice.Dec())
	check.True(t, cfg.Content.IsModerated)
	check.Equal(t, []common.Address{common.HexToAddress("0x5")}, cfg.Content.Moderators)
	check.Equal(t, common.HexToAddress("0x4"), cfg.ProtocolFeeAddress)
	check.Equal(t, uint64(3600), cfg.RewarderDurationSeconds())
	check.Equal(t, "WETH", cfg.Quote.Symbol)

	bob := common.HexToAddress("0xb0b")
	assert.Equal(t, 1, len(cfg.GenesisQuote))
	check.Equal(t, "10000000000000000000", cfg.GenesisQuote[bob].Dec())
	check.Equal(t, 0, len(cfg.GenesisUnit))
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("CONTENTD_MAX_WORKERS", "4")
	t.Setenv("CONTENTD_CONTENT_TEAM", "0x0000000000000000000000000000000000000009")

	cfg, err := Load(NewViper(), writeConfig(t, validYAML))
	assert.NoError(t, err)
	check.Equal(t, 4, cfg.MaxWorkers)
	check.Equal(t, common.HexToAddress("0x9"), cfg.Content.Team)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	check.Error(t, err)
}

func TestLoad_RequiresAccounts(t *testing.T) {
	_, err := Load(NewViper(), "")
	check.True(t, errors.Is(err, ErrInvalid))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero owner", map[string]string{"CONTENTD_CONTENT_OWNER": "0x0000000000000000000000000000000000000000"}},
		{"bad treasury", map[string]string{"CONTENTD_CONTENT_TREASURY": "treasury"}},
		{"zero min price", map[string]string{"CONTENTD_CONTENT_MIN_INIT_PRICE": "0"}},
		{"negative min price", map[string]string{"CONTENTD_CONTENT_MIN_INIT_PRICE": "-1"}},
		{"no workers", map[string]string{"CONTENTD_MAX_WORKERS": "0"}},
		{"unknown network", map[string]string{"CONTENTD_LISTEN_NETWORK": "udp"}},
		{"vsock without port", map[string]string{"CONTENTD_LISTEN_NETWORK": "vsock", "CONTENTD_VSOCK_PORT": "0"}},
		{"same assets", map[string]string{"CONTENTD_UNIT_ADDRESS": "0x0000000000000000000000000000000000000e70"}},
		{"short reward duration", map[string]string{"CONTENTD_REWARDER_DURATION": "10ms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(NewViper(), writeConfig(t, validYAML))
			check.True(t, errors.Is(err, ErrInvalid))
		})
	}
}
