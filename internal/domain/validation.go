package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency       = errors.New("invalid currency code")
	ErrAmountTooLarge        = errors.New("amount exceeds maximum allowed")
	ErrAmountPrecision       = errors.New("amount has too many fractional digits")
	ErrMetadataTooLarge      = errors.New("metadata size exceeds limit")
	ErrIdempotencyKeyTooLong = errors.New("idempotency key too long")
	ErrInvalidAccountStatus  = errors.New("invalid account status")
)

// Validation constants
const (
	// AmountScale is the number of fractional digits stored for money.
	AmountScale          = 6
	MaxTransferAmount    = "99999999999999.999999" // NUMERIC(20,6)
	MaxMetadataSize      = 10240                   // 10KB
	MaxIdempotencyKeyLen = 255
)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
}

var maxAmount = decimal.RequireFromString(MaxTransferAmount)

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = NormalizeCurrency(currency)

	if !validCurrencies[currency] {
		return fmt.Errorf("%w: %s is not a valid ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateAmount validates a transfer amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: at most %d allowed", ErrAmountPrecision, AmountScale)
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransferAmount)
	}

	return nil
}

// ValidateMetadata validates the encoded size of caller metadata.
func ValidateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}

	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadataTooLarge, err)
	}

	if len(encoded) > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrMetadataTooLarge, len(encoded), MaxMetadataSize)
	}

	return nil
}

// ValidateIdempotencyKey validates a caller supplied idempotency key.
func ValidateIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrMissingIdempotencyKey
	}

	if len(key) > MaxIdempotencyKeyLen {
		return fmt.Errorf("%w: exceeds %d characters", ErrIdempotencyKeyTooLong, MaxIdempotencyKeyLen)
	}

	return nil
}

// ValidateAccountStatus validates an account status value.
func ValidateAccountStatus(status AccountStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidAccountStatus, status)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
