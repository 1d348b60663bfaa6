package server

import (
	"crypto/rand"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/contentauction/contentapi"
	"github.com/cloudx-io/contentauction/core"
)

// SignReceipt stamps r with its receipt hash and signs it into a COSE_Sign1
// document. The receipt is CBOR encoded as the COSE payload.
func (km *KeyManager) SignReceipt(r *contentapi.CollectReceipt) (contentapi.ReceiptCOSE, error) {
	fields, err := r.Fields()
	if err != nil {
		return nil, fmt.Errorf("receipt fields: %w", err)
	}
	r.ReceiptHash = core.ComputeReceiptHash(fields).Hex()

	payload, err := contentapi.EncodeReceipt(r)
	if err != nil {
		return nil, err
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelContentType] = "application/cbor"
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, km.signer); err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}

	coseBytes, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal COSE_Sign1: %w", err)
	}
	return contentapi.ReceiptCOSE(coseBytes), nil
}
