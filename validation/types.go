package validation

// ReceiptValidationResult contains the outcome of every check run against a
// collection receipt
type ReceiptValidationResult struct {
	SignatureValid    bool
	PriceValid        bool
	NextAuctionValid  bool
	FeeSplitValid     bool
	ReceiptHashValid  bool
	ExpectationsValid bool
	ValidationDetails []string
}

// IsValid returns true if all receipt validation checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.PriceValid && r.NextAuctionValid &&
		r.FeeSplitValid && r.ReceiptHashValid && r.ExpectationsValid
}

// KeyValidationResult contains validation results for a published signing key
type KeyValidationResult struct {
	AlgorithmValid    bool
	PublicKeyValid    bool
	PublicKeyMatch    bool
	ValidationDetails []string
}

// IsValid returns true if all key validation checks passed
func (r *KeyValidationResult) IsValid() bool {
	return r.AlgorithmValid && r.PublicKeyValid && r.PublicKeyMatch
}
