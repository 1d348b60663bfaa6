package core

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ReceiptFields are the values a collection receipt commits to.
type ReceiptFields struct {
	Content   common.Address
	TokenID   uint64
	EpochID   uint64
	Buyer     common.Address
	To        common.Address
	Price     *uint256.Int
	Timestamp uint64
	ReceiptID string
}

// ComputeReceiptHash computes the receipt hash of a collection.
// This is used by both the server (to sign receipts) and validation (to verify them).
//
// Formula: keccak256(content ‖ tokenId ‖ epochId ‖ buyer ‖ to ‖ price ‖ timestamp ‖ receiptId)
//
// Integers are encoded as 32-byte big-endian words and addresses as their raw
// 20 bytes, so the hash does not depend on any textual formatting.
func ComputeReceiptHash(f ReceiptFields) common.Hash {
	price := f.Price
	if price == nil {
		price = new(uint256.Int)
	}
	priceWord := price.Bytes32()

	return crypto.Keccak256Hash(
		f.Content.Bytes(),
		word(f.TokenID),
		word(f.EpochID),
		f.Buyer.Bytes(),
		f.To.Bytes(),
		priceWord[:],
		word(f.Timestamp),
		[]byte(f.ReceiptID),
	)
}

func word(v uint64) []byte {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], v)
	return w[:]
}
