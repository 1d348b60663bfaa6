package server

import (
	"context"
	"encoding/json"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/contentauction/content"
	"github.com/cloudx-io/contentauction/contentapi"
	"github.com/cloudx-io/contentauction/core"
	"github.com/cloudx-io/contentauction/ledger"
	"github.com/cloudx-io/contentauction/rewarder"
)

const testStart uint64 = 1_700_000_000

var (
	contentAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	rewarderAddr = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	quoteAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	unitAddr     = common.HexToAddress("0x00000000000000000000000000000000000000e3")

	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	treasury = common.HexToAddress("0x0000000000000000000000000000000000000002")
	team     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	protocol = common.HexToAddress("0x0000000000000000000000000000000000000004")
	creator  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestServer(t *testing.T) (*Server, *ledger.ManualClock) {
	t.Helper()
	j := ledger.NewJournal()
	clock := ledger.NewManualClock(testStart)
	quote := ledger.NewToken(j, quoteAddr, "Wrapped Ether", "WETH")
	unit := ledger.NewToken(j, unitAddr, "Unit", "UNIT")

	rw, err := rewarder.New(j, clock, rewarder.Config{
		Address:  rewarderAddr,
		Content:  contentAddr,
		Duration: 100,
		Tokens:   []rewarder.ERC20{quote, unit},
	})
	assert.NoError(t, err)

	c, err := content.New(j, content.Config{
		Address:      contentAddr,
		Name:         "Stolen Content",
		Symbol:       "STEAL",
		Owner:        owner,
		Treasury:     treasury,
		Team:         team,
		Quote:        quote,
		Unit:         unit,
		Rewarder:     rw,
		Registry:     content.StaticRegistry{ProtocolFee: protocol},
		MinInitPrice: uint256.NewInt(1_000_000_000_000_000),
		Clock:        clock,
	})
	assert.NoError(t, err)
	assert.NoError(t, quote.Mint(bob, uint256.NewInt(1_000_000_000_000_000_000)))
	j.Reset()

	keys, err := NewKeyManager()
	assert.NoError(t, err)

	s, err := New(Config{MaxWorkers: 2}, Deps{
		Executor: ledger.NewExecutor(j),
		Content:  c,
		Quote:    quote,
		Unit:     unit,
		Rewarder: rw,
		Keys:     keys,
		Clock:    clock,
	})
	assert.NoError(t, err)
	return s, clock
}

// call sends req through Handle and decodes the response into T.
func call[T any](t *testing.T, s *Server, req any) T {
	t.Helper()
	raw, err := json.Marshal(req)
	assert.NoError(t, err)

	data, err := json.Marshal(s.Handle(raw))
	assert.NoError(t, err)

	var out T
	assert.NoError(t, json.Unmarshal(data, &out))
	return out
}

func header(typ string, from common.Address) contentapi.RequestHeader {
	return contentapi.RequestHeader{Type: typ, From: from.Hex()}
}

func eventNames(records []contentapi.EventRecord) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	return names
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{MaxWorkers: 0}, Deps{})
	check.Error(t, err)

	_, err = New(Config{MaxWorkers: 1}, Deps{})
	check.Error(t, err)
}

func TestHandle_Ping(t *testing.T) {
	s, _ := newTestServer(t)

	resp := call[contentapi.PongResponse](t, s, contentapi.RequestHeader{Type: contentapi.TypePing})
	check.Equal(t, "pong", resp.Type)
	check.True(t, resp.Success)
	check.Equal(t, testStart, resp.Timestamp)
	check.NotEqual(t, "", resp.RequestID)
}

func TestHandle_KeyRequest(t *testing.T) {
	s, _ := newTestServer(t)

	resp := call[contentapi.KeyResponse](t, s, contentapi.RequestHeader{Type: contentapi.TypeKeyRequest})
	check.True(t, resp.Success)
	check.Equal(t, "ES256", resp.KeyAlgorithm)

	want, err := s.Keys.PublicKeyPEM()
	assert.NoError(t, err)
	check.Equal(t, want, resp.PublicKey)
}

func TestHandle_InvalidRequests(t *testing.T) {
	s, _ := newTestServer(t)

	data, err := json.Marshal(s.Handle([]byte("{not json")))
	assert.NoError(t, err)
	var resp contentapi.Response
	assert.NoError(t, json.Unmarshal(data, &resp))
	check.False(t, resp.Success)
	check.Equal(t, "invalid_request", resp.ErrorCode)

	unknown := call[contentapi.Response](t, s, contentapi.RequestHeader{Type: "mint_everything"})
	check.False(t, unknown.Success)
	check.Equal(t, "invalid_request", unknown.ErrorCode)

	noSender := call[contentapi.Response](t, s, contentapi.CreateRequest{
		RequestHeader: contentapi.RequestHeader{Type: contentapi.TypeCreate},
		To:            creator.Hex(),
		URI:           "ipfs://token",
	})
	check.False(t, noSender.Success)
	check.Equal(t, "invalid_request", noSender.ErrorCode)
}

func TestHandle_CreateRecipient(t *testing.T) {
	s, _ := newTestServer(t)

	missing := call[contentapi.Response](t, s, contentapi.CreateRequest{
		RequestHeader: header(contentapi.TypeCreate, creator),
		URI:           "ipfs://token",
	})
	check.False(t, missing.Success)
	check.Equal(t, "zero_to", missing.ErrorCode)

	malformed := call[contentapi.Response](t, s, contentapi.CreateRequest{
		RequestHeader: header(contentapi.TypeCreate, creator),
		To:            "0xnot-an-address",
		URI:           "ipfs://token",
	})
	check.False(t, malformed.Success)
	check.Equal(t, "invalid_request", malformed.ErrorCode)
}

func TestHandle_TransfersDisabled(t *testing.T) {
	s, _ := newTestServer(t)

	for _, typ := range contentapi.DisabledTransferTypes {
		t.Run(typ, func(t *testing.T) {
			resp := call[contentapi.Response](t, s, header(typ, bob))
			check.False(t, resp.Success)
			check.Equal(t, "transfer_disabled", resp.ErrorCode)
			check.Equal(t, typ+"_response", resp.Type)
		})
	}
}

func TestHandle_CreateAndCollect(t *testing.T) {
	s, _ := newTestServer(t)

	created := call[contentapi.CreateResponse](t, s, contentapi.CreateRequest{
		RequestHeader: header(contentapi.TypeCreate, creator),
		To:            creator.Hex(),
		URI:           "ipfs://token",
	})
	assert.True(t, created.Success)
	check.Equal(t, uint64(1), created.TokenID)
	check.Equal(t, []string{"Content__Transfer", "Content__Created"}, eventNames(created.Events))

	approved := call[contentapi.Response](t, s, contentapi.ApproveQuoteRequest{
		RequestHeader: header(contentapi.TypeApproveQuote, bob),
		Amount:        "1000000000000000000",
	})
	assert.True(t, approved.Success)

	collected := call[contentapi.CollectResponse](t, s, contentapi.CollectRequest{
		RequestHeader: header(contentapi.TypeCollect, bob),
		To:            bob.Hex(),
		TokenID:       1,
		EpochID:       0,
		Deadline:      testStart + 60,
		MaxPrice:      "1000000000000000",
	})
	assert.True(t, collected.Success)
	check.Equal(t, "1000000000000000", collected.Price)
	check.True(t, slices.Contains(eventNames(collected.Events), "Content__Collected"))

	coseBytes, err := collected.ReceiptCOSEBase64.Decode()
	assert.NoError(t, err)
	msg, receipt, err := coseBytes.Parse()
	assert.NoError(t, err)

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, s.Keys.PublicKey)
	assert.NoError(t, err)
	check.NoError(t, msg.Verify(nil, verifier))

	check.Equal(t, uint64(1), receipt.TokenID)
	check.Equal(t, uint64(0), receipt.EpochID)
	check.Equal(t, bob.Hex(), receipt.Buyer)
	check.Equal(t, creator.Hex(), receipt.PrevOwner)
	check.Equal(t, testStart, receipt.Timestamp)
	check.Equal(t, "2000000000000000", receipt.NextAuction.InitPrice)
	check.True(t, receipt.ProtocolFee)
	check.Equal(t, "10000000000000", receipt.Split.Protocol)

	fields, err := receipt.Fields()
	assert.NoError(t, err)
	check.Equal(t, core.ComputeReceiptHash(fields).Hex(), receipt.ReceiptHash)

	token := call[contentapi.TokenResponse](t, s, contentapi.TokenRequest{
		RequestHeader: contentapi.RequestHeader{Type: contentapi.TypeGetToken},
		TokenID:       1,
	})
	assert.True(t, token.Success)
	check.Equal(t, bob.Hex(), token.Owner)
	check.Equal(t, creator.Hex(), token.Creator)
	check.Equal(t, "1000000000000000", token.Stake)
	check.Equal(t, uint64(1), token.Auction.EpochID)

	balance := call[contentapi.AmountResponse](t, s, contentapi.AssetRequest{
		RequestHeader: contentapi.RequestHeader{Type: contentapi.TypeBalance},
		Account:       creator.Hex(),
		Asset:         contentapi.AssetQuote,
	})
	assert.True(t, balance.Success)
	check.Equal(t, "820000000000000", balance.Amount)
	check.Equal(t, "WETH", balance.Asset)

	owned := call[contentapi.TokensResponse](t, s, contentapi.AddressRequest{
		RequestHeader: contentapi.RequestHeader{Type: contentapi.TypeTokensOf},
		Address:       bob.Hex(),
	})
	check.Equal(t, []uint64{1}, owned.TokenIDs)
}

func TestHandle_CollectFailuresAreClassified(t *testing.T) {
	s, clock := newTestServer(t)

	call[contentapi.CreateResponse](t, s, contentapi.CreateRequest{
		RequestHeader: header(contentapi.TypeCreate, creator),
		To:            creator.Hex(),
		URI:           "ipfs://token",
	})

	stale := call[contentapi.CollectResponse](t, s, contentapi.CollectRequest{
		RequestHeader: header(contentapi.TypeCollect, bob),
		To:            bob.Hex(),
		TokenID:       1,
		EpochID:       4,
		Deadline:      testStart + 60,
		MaxPrice:      "1000000000000000",
	})
	check.False(t, stale.Success)
	check.Equal(t, "epoch_id_mismatch", stale.ErrorCode)
	check.True(t, stale.Retryable)
	check.Equal(t, contentapi.ReceiptCOSEBase64(""), stale.ReceiptCOSEBase64)

	// Without an allowance the payment pull fails and nothing is committed.
	unpaid := call[contentapi.CollectResponse](t, s, contentapi.CollectRequest{
		RequestHeader: header(contentapi.TypeCollect, bob),
		To:            bob.Hex(),
		TokenID:       1,
		Deadline:      testStart + 60,
		MaxPrice:      "1000000000000000",
	})
	check.False(t, unpaid.Success)
	check.Equal(t, "insufficient_allowance", unpaid.ErrorCode)

	clock.Advance(120)
	late := call[contentapi.CollectResponse](t, s, contentapi.CollectRequest{
		RequestHeader: header(contentapi.TypeCollect, bob),
		To:            bob.Hex(),
		TokenID:       1,
		Deadline:      testStart + 60,
		MaxPrice:      "1000000000000000",
	})
	check.Equal(t, "deadline_passed", late.ErrorCode)

	token := call[contentapi.TokenResponse](t, s, contentapi.TokenRequest{
		RequestHeader: contentapi.RequestHeader{Type: contentapi.TypeGetToken},
		TokenID:       1,
	})
	check.Equal(t, creator.Hex(), token.Owner)
}

func TestHandle_AdminRequiresOwner(t *testing.T) {
	s, _ := newTestServer(t)

	denied := call[contentapi.Response](t, s, contentapi.AddressRequest{
		RequestHeader: header(contentapi.TypeSetTreasury, bob),
		Address:       bob.Hex(),
	})
	check.False(t, denied.Success)
	check.Equal(t, "not_owner", denied.ErrorCode)
	check.False(t, denied.Retryable)

	zero := call[contentapi.Response](t, s, contentapi.AddressRequest{
		RequestHeader: header(contentapi.TypeSetTeam, owner),
	})
	check.Equal(t, "zero_address", zero.ErrorCode)

	moderated := call[contentapi.Response](t, s, contentapi.SetIsModeratedRequest{
		RequestHeader: header(contentapi.TypeSetIsModerated, owner),
		IsModerated:   true,
	})
	check.True(t, moderated.Success)
	check.Equal(t, []string{"Content__IsModeratedSet"}, eventNames(moderated.Events))
	check.True(t, s.Content.IsModerated())
}

func TestServe_TCPRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	l, err := Listen("tcp", "127.0.0.1:0", 0)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	conn, err := net.Dial("tcp", l.Addr().String())
	assert.NoError(t, err)
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	assert.NoError(t, json.NewEncoder(conn).Encode(contentapi.RequestHeader{Type: contentapi.TypePing}))
	assert.NoError(t, conn.(*net.TCPConn).CloseWrite())

	var resp contentapi.PongResponse
	assert.NoError(t, json.NewDecoder(conn).Decode(&resp))
	check.Equal(t, "pong", resp.Type)
	check.True(t, resp.Success)
	assert.NoError(t, conn.Close())

	cancel()
	select {
	case err := <-done:
		check.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListen_UnknownNetwork(t *testing.T) {
	_, err := Listen("udp", "127.0.0.1:0", 0)
	check.Error(t, err)
}
