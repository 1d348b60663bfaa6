// Package contentapi defines the JSON wire protocol spoken by the content
// server and the signed receipts it issues for collections.
//
// Every request is a single JSON object whose "type" field selects the
// operation. Amounts are decimal strings of base units and accounts are
// 0x-prefixed hex addresses.
package contentapi

import (
	"encoding/json"
	"fmt"

	"github.com/cloudx-io/contentauction/ledger"
)

// Request types.
const (
	TypePing            = "ping"
	TypeKeyRequest      = "key_request"
	TypeCreate          = "create"
	TypeCollect         = "collect"
	TypeDistribute      = "distribute"
	TypeGetAuction      = "get_auction"
	TypeGetPrice        = "get_price"
	TypeGetToken        = "get_token"
	TypeTokensOf        = "tokens_of"
	TypeApproveContents = "approve_contents"
	TypeSetURI          = "set_uri"
	TypeSetTreasury     = "set_treasury"
	TypeSetTeam         = "set_team"
	TypeSetIsModerated  = "set_is_moderated"
	TypeSetModerators   = "set_moderators"
	TypeAddReward       = "add_reward"
	TypeTransferOwner   = "transfer_ownership"
	TypeApproveQuote    = "approve_quote"
	TypeBalance         = "balance"
	TypeEarned          = "earned"
	TypeClaimRewards    = "claim_rewards"

	// Token transfers other than collection are permanently disabled; these
	// types are recognised only to be refused.
	TypeApprove           = "approve"
	TypeSetApprovalForAll = "set_approval_for_all"
	TypeTransferFrom      = "transfer_from"
	TypeSafeTransferFrom  = "safe_transfer_from"
)

// DisabledTransferTypes lists the request types refused with transfer_disabled.
var DisabledTransferTypes = []string{TypeApprove, TypeSetApprovalForAll, TypeTransferFrom, TypeSafeTransferFrom}

// Asset names accepted by balance and earned requests.
const (
	AssetQuote = "quote"
	AssetUnit  = "unit"
)

// RequestHeader is embedded in every request. From is the acting account.
type RequestHeader struct {
	Type string `json:"type"`
	From string `json:"from,omitempty"`
}

type CreateRequest struct {
	RequestHeader
	To  string `json:"to"`
	URI string `json:"uri"`
}

// CollectRequest buys a token at the live dutch auction price.
type CollectRequest struct {
	RequestHeader
	To       string `json:"to"`
	TokenID  uint64 `json:"token_id"`
	EpochID  uint64 `json:"epoch_id"`
	Deadline uint64 `json:"deadline"`
	MaxPrice string `json:"max_price"`
}

// TokenRequest addresses a single token (get_auction, get_price, get_token).
type TokenRequest struct {
	RequestHeader
	TokenID uint64 `json:"token_id"`
}

type ApproveContentsRequest struct {
	RequestHeader
	TokenIDs []uint64 `json:"token_ids"`
}

type SetURIRequest struct {
	RequestHeader
	URI string `json:"uri"`
}

// AddressRequest carries a single address argument (set_treasury, set_team,
// add_reward, transfer_ownership, tokens_of).
type AddressRequest struct {
	RequestHeader
	Address string `json:"address"`
}

type SetIsModeratedRequest struct {
	RequestHeader
	IsModerated bool `json:"is_moderated"`
}

type SetModeratorsRequest struct {
	RequestHeader
	Accounts    []string `json:"accounts"`
	IsModerator bool     `json:"is_moderator"`
}

// ApproveQuoteRequest sets the allowance the collection may pull from From
// in the quote asset when collecting.
type ApproveQuoteRequest struct {
	RequestHeader
	Amount string `json:"amount"`
}

// AssetRequest queries an account's position in an asset (balance, earned).
type AssetRequest struct {
	RequestHeader
	Account string `json:"account"`
	Asset   string `json:"asset"`
}

// Response is the common part of every response.
type Response struct {
	Type           string        `json:"type"`
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	ErrorCode      string        `json:"error_code,omitempty"`
	Retryable      bool          `json:"retryable,omitempty"`
	RequestID      string        `json:"request_id"`
	Events         []EventRecord `json:"events,omitempty"`
	ProcessingTime int64         `json:"processing_time_ms"`
}

// EventRecord is an event emitted by a committed request.
type EventRecord struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// NewEventRecords encodes committed ledger events for the wire.
func NewEventRecords(events []ledger.Event) ([]EventRecord, error) {
	records := make([]EventRecord, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", e.EventName(), err)
		}
		records = append(records, EventRecord{Name: e.EventName(), Data: data})
	}
	return records, nil
}

type PongResponse struct {
	Response
	Timestamp uint64 `json:"timestamp"`
}

type CreateResponse struct {
	Response
	TokenID uint64 `json:"token_id"`
}

// CollectResponse reports the price paid and carries the signed receipt.
type CollectResponse struct {
	Response
	TokenID           uint64            `json:"token_id"`
	Price             string            `json:"price"`
	ReceiptCOSEBase64 ReceiptCOSEBase64 `json:"receipt_cose_base64,omitempty"`
}

// Auction is the wire form of a token's dutch auction.
type Auction struct {
	EpochID   uint64 `json:"epoch_id"`
	InitPrice string `json:"init_price"`
	StartTime uint64 `json:"start_time"`
}

type AuctionResponse struct {
	Response
	TokenID uint64  `json:"token_id"`
	Auction Auction `json:"auction"`
}

type PriceResponse struct {
	Response
	TokenID uint64 `json:"token_id"`
	Price   string `json:"price"`
}

// TokenResponse is the full view of a token.
type TokenResponse struct {
	Response
	TokenID  uint64  `json:"token_id"`
	Owner    string  `json:"owner"`
	Creator  string  `json:"creator"`
	URI      string  `json:"uri"`
	Approved bool    `json:"approved"`
	Stake    string  `json:"stake"`
	Price    string  `json:"price"`
	Auction  Auction `json:"auction"`
}

type TokensResponse struct {
	Response
	Owner    string   `json:"owner"`
	TokenIDs []uint64 `json:"token_ids"`
}

type AmountResponse struct {
	Response
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

// KeyResponse publishes the public key that signs collection receipts.
type KeyResponse struct {
	Response
	KeyAlgorithm string `json:"key_algorithm"`
	PublicKey    string `json:"public_key"` // PEM format
}
