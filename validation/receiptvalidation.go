package validation

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/cloudx-io/contentauction/contentapi"
	"github.com/cloudx-io/contentauction/core"
)

// ReceiptValidationInput contains all inputs needed for receipt validation
type ReceiptValidationInput struct {
	ReceiptCOSEBase64 contentapi.ReceiptCOSEBase64
	PublicKeyPEM      string

	// Optional expectations of the buyer; zero values are not checked.
	TokenID  uint64
	Buyer    string
	MaxPrice string
}

// ValidateReceipt validates a signed collection receipt and verifies:
// - The COSE signature matches the public key
// - The price follows from the pre-collection auction and the timestamp
// - The next auction follows from the price and the price floor
// - The fee split follows from the price
// - The receipt hash commits to the receipt fields
// - Any expectations of the buyer hold
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input or key)
func ValidateReceipt(input *ReceiptValidationInput) (*ReceiptValidationResult, error) {
	publicKey, err := ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, err
	}

	coseBytes, err := input.ReceiptCOSEBase64.Decode()
	if err != nil {
		return nil, err
	}

	result := &ReceiptValidationResult{}

	// 1. Signature
	receipt, err := VerifyReceiptSignature(coseBytes, publicKey)
	switch {
	case err == nil:
		result.SignatureValid = true
	case receipt == nil:
		return nil, fmt.Errorf("failed to parse receipt: %w", err)
	default:
		result.addDetail("signature invalid: %v", err)
	}

	// 2. Price from the pre-collection auction
	auction, err := receipt.Auction.Core()
	if err != nil {
		return nil, fmt.Errorf("receipt auction: %w", err)
	}
	expectedPrice := core.PriceAt(auction, receipt.Timestamp)

	price, err := core.ParseAmount(receipt.Price)
	switch {
	case err != nil:
		result.addDetail("receipt price %q invalid: %v", receipt.Price, err)
		price = expectedPrice
	case receipt.EpochID != auction.EpochID:
		result.addDetail("receipt epoch %d does not match auction epoch %d", receipt.EpochID, auction.EpochID)
	case !price.Eq(expectedPrice):
		result.addDetail("price mismatch: receipt %s, expected %s", price.Dec(), expectedPrice.Dec())
	default:
		result.PriceValid = true
	}

	// 3. Next auction
	minInitPrice, err := core.ParseAmount(receipt.MinInitPrice)
	if err != nil {
		result.addDetail("receipt min init price %q invalid: %v", receipt.MinInitPrice, err)
	} else {
		expectedNext := contentapi.NewAuction(core.NextAuction(auction, price, minInitPrice, receipt.Timestamp))
		if receipt.NextAuction == expectedNext {
			result.NextAuctionValid = true
		} else {
			result.addDetail("next auction mismatch: receipt %+v, expected %+v", receipt.NextAuction, expectedNext)
		}
	}

	// 4. Fee split
	result.FeeSplitValid = validateSplit(result, receipt, price)

	// 5. Receipt hash
	fields, err := receipt.Fields()
	if err != nil {
		result.addDetail("receipt fields invalid: %v", err)
	} else {
		expectedHash := core.ComputeReceiptHash(fields).Hex()
		if receipt.ReceiptHash == expectedHash {
			result.ReceiptHashValid = true
		} else {
			result.addDetail("receipt hash mismatch: receipt %s, expected %s", receipt.ReceiptHash, expectedHash)
		}
	}

	// 6. Buyer expectations
	result.ExpectationsValid = validateExpectations(result, input, receipt, price)

	return result, nil
}

func validateSplit(result *ReceiptValidationResult, receipt *contentapi.CollectReceipt, price *uint256.Int) bool {
	expected := contentapi.NewFeeSplit(core.SplitFees(price, receipt.ProtocolFee))
	if receipt.Split != expected {
		result.addDetail("fee split mismatch: receipt %+v, expected %+v", receipt.Split, expected)
		return false
	}
	return true
}

func validateExpectations(result *ReceiptValidationResult, input *ReceiptValidationInput, receipt *contentapi.CollectReceipt, price *uint256.Int) bool {
	valid := true

	if input.TokenID != 0 && input.TokenID != receipt.TokenID {
		result.addDetail("token %d does not match expected token %d", receipt.TokenID, input.TokenID)
		valid = false
	}

	if input.Buyer != "" {
		expected, err := contentapi.ParseAddress(input.Buyer)
		buyer, buyerErr := contentapi.ParseAddress(receipt.Buyer)
		switch {
		case err != nil:
			result.addDetail("expected buyer invalid: %v", err)
			valid = false
		case buyerErr != nil || buyer != expected:
			result.addDetail("buyer %s does not match expected buyer %s", receipt.Buyer, expected.Hex())
			valid = false
		}
	}

	if input.MaxPrice != "" {
		maxPrice, err := core.ParseAmount(input.MaxPrice)
		switch {
		case err != nil:
			result.addDetail("expected max price %q invalid: %v", input.MaxPrice, err)
			valid = false
		case price.Gt(maxPrice):
			result.addDetail("price %s exceeds max price %s", price.Dec(), maxPrice.Dec())
			valid = false
		}
	}

	return valid
}

func (r *ReceiptValidationResult) addDetail(format string, args ...any) {
	r.ValidationDetails = append(r.ValidationDetails, fmt.Sprintf(format, args...))
}
