package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/cloudx-io/contentauction/contentapi"
)

// KeyAlgorithm is the only receipt signing scheme accepted by the validator.
const KeyAlgorithm = "ES256"

// ParsePublicKeyPEM parses a PKIX "PUBLIC KEY" block holding a P-256 key.
func ParsePublicKeyPEM(publicKeyPEM string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("public key is not PEM encoded")
	}
	if block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an ECDSA key")
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("public key is not on P-256")
	}
	return ecKey, nil
}

// ValidateKeyResponse checks that a key_request response publishes an ES256
// key equal to expectedPEM.
//
// Returns:
//   - KeyValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if expectedPEM itself cannot be parsed
func ValidateKeyResponse(resp *contentapi.KeyResponse, expectedPEM string) (*KeyValidationResult, error) {
	expected, err := ParsePublicKeyPEM(expectedPEM)
	if err != nil {
		return nil, fmt.Errorf("expected key: %w", err)
	}

	result := &KeyValidationResult{}

	if resp.KeyAlgorithm == KeyAlgorithm {
		result.AlgorithmValid = true
	} else {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("unexpected key algorithm %q", resp.KeyAlgorithm))
	}

	published, err := ParsePublicKeyPEM(resp.PublicKey)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("published key invalid: %v", err))
		return result, nil
	}
	result.PublicKeyValid = true

	if published.Equal(expected) {
		result.PublicKeyMatch = true
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "published key does not match expected key")
	}

	return result, nil
}
