package validation

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/contentauction/contentapi"
)

// VerifyReceiptSignature verifies the ES256 COSE_Sign1 signature of a receipt
// with publicKey and returns the decoded receipt payload.
//
// A malformed envelope or payload is reported as an error; a well formed
// receipt with a bad signature returns the receipt together with an error
// wrapping cose.ErrVerification.
func VerifyReceiptSignature(coseBytes contentapi.ReceiptCOSE, publicKey *ecdsa.PublicKey) (*contentapi.CollectReceipt, error) {
	msg, receipt, err := coseBytes.Parse()
	if err != nil {
		return nil, err
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return receipt, fmt.Errorf("read algorithm header: %w", err)
	}
	if alg != cose.AlgorithmES256 {
		return receipt, fmt.Errorf("unexpected signing algorithm %v", alg)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return receipt, fmt.Errorf("create verifier: %w", err)
	}

	if err := msg.Verify(nil, verifier); err != nil {
		return receipt, fmt.Errorf("COSE signature verification failed: %w", err)
	}

	return receipt, nil
}
