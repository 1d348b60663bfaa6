package contentapi

import (
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/contentauction/core"
)

// ReceiptCOSE is a raw COSE_Sign1 document whose payload is a CBOR encoded
// CollectReceipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is a base64 (standard encoding) ReceiptCOSE for JSON transport.
type ReceiptCOSEBase64 string

// EncodeBase64 encodes the receipt for JSON transport.
func (r ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

// Decode returns the raw COSE bytes.
func (r ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(r))
	if err != nil {
		return nil, fmt.Errorf("decode receipt base64: %w", err)
	}
	return ReceiptCOSE(data), nil
}

func (r ReceiptCOSEBase64) String() string {
	return string(r)
}

// Parse decodes the COSE envelope and its receipt payload. The signature is
// not checked; see Sign1Message.Verify.
func (r ReceiptCOSE) Parse() (*cose.Sign1Message, *CollectReceipt, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(r); err != nil {
		return nil, nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	receipt, err := DecodeReceipt(msg.Payload)
	if err != nil {
		return nil, nil, err
	}
	return &msg, receipt, nil
}

// FeeSplit is the wire form of core.FeeSplit.
type FeeSplit struct {
	PrevOwner string `cbor:"prev_owner" json:"prev_owner"`
	Creator   string `cbor:"creator" json:"creator"`
	Team      string `cbor:"team" json:"team"`
	Protocol  string `cbor:"protocol" json:"protocol"`
	Treasury  string `cbor:"treasury" json:"treasury"`
}

// NewFeeSplit converts a split to its wire form.
func NewFeeSplit(s core.FeeSplit) FeeSplit {
	return FeeSplit{
		PrevOwner: dec(s.PrevOwner),
		Creator:   dec(s.Creator),
		Team:      dec(s.Team),
		Protocol:  dec(s.Protocol),
		Treasury:  dec(s.Treasury),
	}
}

// CollectReceipt records one collection with everything needed to recompute
// its price and payouts offline.
type CollectReceipt struct {
	ReceiptID string `cbor:"receipt_id" json:"receipt_id"`
	Content   string `cbor:"content" json:"content"`
	TokenID   uint64 `cbor:"token_id" json:"token_id"`
	EpochID   uint64 `cbor:"epoch_id" json:"epoch_id"`
	Buyer     string `cbor:"buyer" json:"buyer"`
	To        string `cbor:"to" json:"to"`
	PrevOwner string `cbor:"prev_owner" json:"prev_owner"`
	Price     string `cbor:"price" json:"price"`
	Timestamp uint64 `cbor:"timestamp" json:"timestamp"`

	// Auction is the auction the price was read from, before it advanced.
	Auction      Auction  `cbor:"auction" json:"auction"`
	NextAuction  Auction  `cbor:"next_auction" json:"next_auction"`
	MinInitPrice string   `cbor:"min_init_price" json:"min_init_price"`
	ProtocolFee  bool     `cbor:"protocol_fee" json:"protocol_fee"`
	Split        FeeSplit `cbor:"split" json:"split"`

	ReceiptHash string `cbor:"receipt_hash" json:"receipt_hash"`
}

// Fields returns the values committed to by ReceiptHash.
func (r *CollectReceipt) Fields() (core.ReceiptFields, error) {
	content, err := ParseAddress(r.Content)
	if err != nil {
		return core.ReceiptFields{}, fmt.Errorf("content: %w", err)
	}
	buyer, err := ParseAddress(r.Buyer)
	if err != nil {
		return core.ReceiptFields{}, fmt.Errorf("buyer: %w", err)
	}
	to, err := ParseAddress(r.To)
	if err != nil {
		return core.ReceiptFields{}, fmt.Errorf("to: %w", err)
	}
	price, err := core.ParseAmount(r.Price)
	if err != nil {
		return core.ReceiptFields{}, fmt.Errorf("price: %w", err)
	}
	return core.ReceiptFields{
		Content:   content,
		TokenID:   r.TokenID,
		EpochID:   r.EpochID,
		Buyer:     buyer,
		To:        to,
		Price:     price,
		Timestamp: r.Timestamp,
		ReceiptID: r.ReceiptID,
	}, nil
}

var receiptEncMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// EncodeReceipt encodes r as deterministic CBOR.
func EncodeReceipt(r *CollectReceipt) ([]byte, error) {
	data, err := receiptEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	return data, nil
}

// DecodeReceipt decodes a CBOR receipt payload.
func DecodeReceipt(data []byte) (*CollectReceipt, error) {
	var r CollectReceipt
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

// NewAuction converts an auction to its wire form.
func NewAuction(a core.Auction) Auction {
	return Auction{EpochID: a.EpochID, InitPrice: dec(a.InitPrice), StartTime: a.StartTime}
}

// Core converts the wire form back to a core.Auction.
func (a Auction) Core() (core.Auction, error) {
	initPrice, err := core.ParseAmount(a.InitPrice)
	if err != nil {
		return core.Auction{}, fmt.Errorf("init price: %w", err)
	}
	return core.Auction{EpochID: a.EpochID, InitPrice: initPrice, StartTime: a.StartTime}, nil
}

// ParseAddress parses a 0x-prefixed hex account.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func dec(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}
