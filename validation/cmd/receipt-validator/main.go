package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/contentauction/contentapi"
	"github.com/cloudx-io/contentauction/validation"
)

// plainTextHandler is a simple slog handler that writes plain text to stdout
// without timestamps or log levels - appropriate for CLI output
type plainTextHandler struct{}

func (*plainTextHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (*plainTextHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintln(os.Stdout, r.Message)
	return err
}

func (h *plainTextHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *plainTextHandler) WithGroup(_ string) slog.Handler {
	return h
}

var logger = slog.New(&plainTextHandler{})

// errValidationFailed marks a completed validation that did not pass.
var errValidationFailed = errors.New("validation failed")

const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
		os.Exit(exitValid)
	case errors.Is(err, errValidationFailed):
		os.Exit(exitInvalid)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	var (
		receiptPath   string
		publicKeyPath string
		outputFormat  string
		tokenID       uint64
		buyer         string
		maxPrice      string
	)

	cmd := &cobra.Command{
		Use:   "receipt-validator --receipt <path> --public-key <pem>",
		Short: "Validate a signed collection receipt",
		Long: `Validates collection receipts returned by contentd.

The receipt file holds either a collect response as JSON or the bare
base64 COSE receipt. The price, next auction, fee split and receipt hash
are recomputed from the receipt and compared with what was signed.

Exit Codes:
  0 - Validation passed
  1 - Validation failed
  2 - Invalid input or runtime error`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			receipt, err := readReceipt(receiptPath)
			if err != nil {
				return fmt.Errorf("reading receipt: %w", err)
			}
			publicKey, err := os.ReadFile(publicKeyPath)
			if err != nil {
				return fmt.Errorf("reading public key: %w", err)
			}

			result, err := validation.ValidateReceipt(&validation.ReceiptValidationInput{
				ReceiptCOSEBase64: receipt,
				PublicKeyPEM:      string(publicKey),
				TokenID:           tokenID,
				Buyer:             buyer,
				MaxPrice:          maxPrice,
			})
			if err != nil {
				return fmt.Errorf("validation error: %w", err)
			}

			if err := output(outputFormat, receiptJSON(result), receiptText(result)); err != nil {
				return err
			}
			if !result.IsValid() {
				return errValidationFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&receiptPath, "receipt", "", "Path to collect response JSON or base64 receipt file (required)")
	flags.StringVar(&publicKeyPath, "public-key", "", "Path to signer public key PEM file (required)")
	flags.StringVar(&outputFormat, "format", "text", "Output format: text or json")
	flags.Uint64Var(&tokenID, "token-id", 0, "Expected token id")
	flags.StringVar(&buyer, "buyer", "", "Expected buyer address")
	flags.StringVar(&maxPrice, "max-price", "", "Highest acceptable price in base units")
	_ = cmd.MarkFlagRequired("receipt")
	_ = cmd.MarkFlagRequired("public-key")

	cmd.AddCommand(newKeyCmd())
	return cmd
}

func newKeyCmd() *cobra.Command {
	var (
		responsePath  string
		publicKeyPath string
		outputFormat  string
	)

	cmd := &cobra.Command{
		Use:   "key --response <path> --public-key <pem>",
		Short: "Check that a key_request response publishes the expected signing key",
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := os.ReadFile(responsePath)
			if err != nil {
				return fmt.Errorf("reading key response: %w", err)
			}
			var resp contentapi.KeyResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				return fmt.Errorf("failed to parse JSON: %w", err)
			}
			publicKey, err := os.ReadFile(publicKeyPath)
			if err != nil {
				return fmt.Errorf("reading public key: %w", err)
			}

			result, err := validation.ValidateKeyResponse(&resp, string(publicKey))
			if err != nil {
				return fmt.Errorf("validation error: %w", err)
			}

			if err := output(outputFormat, keyJSON(result), keyText(result)); err != nil {
				return err
			}
			if !result.IsValid() {
				return errValidationFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&responsePath, "response", "", "Path to key response JSON file (required)")
	flags.StringVar(&publicKeyPath, "public-key", "", "Path to expected public key PEM file (required)")
	flags.StringVar(&outputFormat, "format", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("response")
	_ = cmd.MarkFlagRequired("public-key")
	return cmd
}

// readReceipt accepts a collect response JSON document or a bare base64 receipt.
func readReceipt(path string) (contentapi.ReceiptCOSEBase64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	data = bytes.TrimSpace(data)

	if !bytes.HasPrefix(data, []byte("{")) {
		return contentapi.ReceiptCOSEBase64(data), nil
	}

	var resp contentapi.CollectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse JSON: %w", err)
	}
	if resp.ReceiptCOSEBase64 == "" {
		return "", fmt.Errorf("missing receipt_cose_base64 field in collect response")
	}
	return resp.ReceiptCOSEBase64, nil
}

func output(format string, jsonOutput map[string]any, textOutput []string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(jsonOutput, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		logger.Info(string(data))
	case "text":
		for _, line := range textOutput {
			logger.Info(line)
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}

func receiptText(result *validation.ReceiptValidationResult) []string {
	lines := []string{
		"Collection Receipt Validator",
		"============================",
		"",
		"Summary:",
		fmt.Sprintf("  Signature Valid:    %v", result.SignatureValid),
		fmt.Sprintf("  Price Valid:        %v", result.PriceValid),
		fmt.Sprintf("  Next Auction Valid: %v", result.NextAuctionValid),
		fmt.Sprintf("  Fee Split Valid:    %v", result.FeeSplitValid),
		fmt.Sprintf("  Receipt Hash Valid: %v", result.ReceiptHashValid),
		fmt.Sprintf("  Expectations Met:   %v", result.ExpectationsValid),
	}
	return append(lines, verdict(result.IsValid(), result.ValidationDetails)...)
}

func receiptJSON(result *validation.ReceiptValidationResult) map[string]any {
	return map[string]any{
		"valid":              result.IsValid(),
		"signature_valid":    result.SignatureValid,
		"price_valid":        result.PriceValid,
		"next_auction_valid": result.NextAuctionValid,
		"fee_split_valid":    result.FeeSplitValid,
		"receipt_hash_valid": result.ReceiptHashValid,
		"expectations_valid": result.ExpectationsValid,
		"details":            result.ValidationDetails,
	}
}

func keyText(result *validation.KeyValidationResult) []string {
	lines := []string{
		"Signing Key Validator",
		"=====================",
		"",
		"Summary:",
		fmt.Sprintf("  Algorithm Valid:   %v", result.AlgorithmValid),
		fmt.Sprintf("  Public Key Valid:  %v", result.PublicKeyValid),
		fmt.Sprintf("  Public Key Match:  %v", result.PublicKeyMatch),
	}
	return append(lines, verdict(result.IsValid(), result.ValidationDetails)...)
}

func keyJSON(result *validation.KeyValidationResult) map[string]any {
	return map[string]any{
		"valid":            result.IsValid(),
		"algorithm_valid":  result.AlgorithmValid,
		"public_key_valid": result.PublicKeyValid,
		"public_key_match": result.PublicKeyMatch,
		"details":          result.ValidationDetails,
	}
}

func verdict(valid bool, details []string) []string {
	var lines []string
	if len(details) > 0 {
		lines = append(lines, "", "Details:")
		for _, d := range details {
			lines = append(lines, "  - "+d)
		}
	}
	lines = append(lines, "", "============================")
	if valid {
		return append(lines, "VALIDATION: ✓ PASSED", fmt.Sprintf("Exit Code: %d", exitValid))
	}
	return append(lines, "VALIDATION: ✗ FAILED", fmt.Sprintf("Exit Code: %d", exitInvalid))
}
