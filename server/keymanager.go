package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/veraison/go-cose"
)

// KeyAlgorithm names the receipt signing scheme published by key_request.
const KeyAlgorithm = "ES256"

// KeyManager holds the server's receipt signing key.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey // Keep private - sensitive!
	PublicKey  *ecdsa.PublicKey
	signer     cose.Signer
}

// NewKeyManager creates a KeyManager with a fresh P-256 key pair.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return newKeyManager(privateKey)
}

// LoadKeyManager reads a PEM encoded P-256 private key (SEC 1 or PKCS #8)
// from path.
func LoadKeyManager(path string) (*KeyManager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("signing key %s is not PEM encoded", path)
	}

	var privateKey *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		privateKey, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		var key any
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			if privateKey, ok = key.(*ecdsa.PrivateKey); !ok {
				return nil, fmt.Errorf("signing key %s is not an ECDSA key", path)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported PEM block %q in %s", block.Type, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key %s is not on P-256", path)
	}

	return newKeyManager(privateKey)
}

func newKeyManager(privateKey *ecdsa.PrivateKey) (*KeyManager, error) {
	signer, err := cose.NewSigner(cose.AlgorithmES256, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	return &KeyManager{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		signer:     signer,
	}, nil
}

// PublicKeyPEM returns the public key in PEM format
func (km *KeyManager) PublicKeyPEM() (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(km.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}

	return string(pem.EncodeToMemory(pemBlock)), nil
}

// PrivateKeyPEM returns the private key as a SEC 1 "EC PRIVATE KEY" block.
func (km *KeyManager) PrivateKeyPEM() ([]byte, error) {
	derBytes, err := x509.MarshalECPrivateKey(km.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: derBytes}), nil
}
