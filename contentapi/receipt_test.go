package contentapi

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/contentauction/core"
)

func testReceipt() *CollectReceipt {
	return &CollectReceipt{
		ReceiptID: "5b0f4c8e-8f7e-4d0a-9a57-0c3c1f7d2b11",
		Content:   "0x00000000000000000000000000000000000000C0",
		TokenID:   1,
		EpochID:   0,
		Buyer:     "0x0000000000000000000000000000000000000b0b",
		To:        "0x0000000000000000000000000000000000000b0b",
		PrevOwner: "0x000000000000000000000000000000000000a11c",
		Price:     "1000000000000000",
		Timestamp: 1_700_000_000,
		Auction:   Auction{EpochID: 0, InitPrice: "1000000000000000", StartTime: 1_700_000_000},
		NextAuction: Auction{
			EpochID: 1, InitPrice: "2000000000000000", StartTime: 1_700_000_000,
		},
		MinInitPrice: "1000000000000000",
		Split:        NewFeeSplit(core.SplitFees(uint256.NewInt(1_000_000_000_000_000), false)),
	}
}

func TestReceiptCOSE_Base64RoundTrip(t *testing.T) {
	raw := ReceiptCOSE([]byte("mock-cose-receipt"))

	encoded := raw.EncodeBase64()
	check.NotEqual(t, "", encoded.String())

	decoded, err := encoded.Decode()
	check.Nil(t, err)
	check.Equal(t, raw, decoded)
}

func TestReceiptCOSEBase64_DecodeInvalid(t *testing.T) {
	_, err := ReceiptCOSEBase64("not base64!").Decode()
	check.Error(t, err)
}

func TestEncodeReceipt_Deterministic(t *testing.T) {
	first, err := EncodeReceipt(testReceipt())
	assert.NoError(t, err)
	second, err := EncodeReceipt(testReceipt())
	assert.NoError(t, err)
	check.Equal(t, first, second)

	decoded, err := DecodeReceipt(first)
	assert.NoError(t, err)
	check.Equal(t, testReceipt(), decoded)
}

func TestDecodeReceipt_Invalid(t *testing.T) {
	_, err := DecodeReceipt([]byte{0xff, 0x00})
	check.Error(t, err)
}

func TestCollectReceipt_Fields(t *testing.T) {
	fields, err := testReceipt().Fields()
	assert.NoError(t, err)

	check.Equal(t, common.HexToAddress("0xc0"), fields.Content)
	check.Equal(t, common.HexToAddress("0xb0b"), fields.Buyer)
	check.Equal(t, "1000000000000000", fields.Price.Dec())
	check.Equal(t, uint64(1), fields.TokenID)
}

func TestCollectReceipt_FieldsRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CollectReceipt)
	}{
		{"content", func(r *CollectReceipt) { r.Content = "content" }},
		{"buyer", func(r *CollectReceipt) { r.Buyer = "0x12" }},
		{"to", func(r *CollectReceipt) { r.To = "" }},
		{"price", func(r *CollectReceipt) { r.Price = "ten" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testReceipt()
			tt.mutate(r)
			_, err := r.Fields()
			check.Error(t, err)
		})
	}
}

func TestReceiptCOSE_Parse(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)
	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	assert.NoError(t, err)

	payload, err := EncodeReceipt(testReceipt())
	assert.NoError(t, err)

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	assert.NoError(t, msg.Sign(rand.Reader, nil, signer))
	raw, err := msg.MarshalCBOR()
	assert.NoError(t, err)

	parsed, receipt, err := ReceiptCOSE(raw).Parse()
	assert.NoError(t, err)
	check.Equal(t, testReceipt(), receipt)

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, &key.PublicKey)
	assert.NoError(t, err)
	check.NoError(t, parsed.Verify(nil, verifier))
}

func TestReceiptCOSE_ParseGarbage(t *testing.T) {
	_, _, err := ReceiptCOSE([]byte("garbage")).Parse()
	check.Error(t, err)
}

func TestAuction_CoreRoundTrip(t *testing.T) {
	a := core.Auction{EpochID: 3, InitPrice: uint256.NewInt(42), StartTime: 99}

	back, err := NewAuction(a).Core()
	assert.NoError(t, err)
	check.Equal(t, uint64(3), back.EpochID)
	check.Equal(t, "42", back.InitPrice.Dec())
	check.Equal(t, uint64(99), back.StartTime)

	_, err = Auction{InitPrice: "x"}.Core()
	check.Error(t, err)
}
