// src/security/validation/field_validator.go
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hivefund/reconciler/src/logger"
)

var ErrValidationFailed = errors.New("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxAccountNameLength   = 16
	MaxLabelLength         = 255
	MaxBatchSize           = 5000
)

// Hive account names: 3-16 chars, lower-case letters, digits, dots and dashes, starting with a letter.
var accountNameRegex = regexp.MustCompile(`^[a-z][a-z0-9.-]{2,15}$`)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateAccountName checks a chain account name, ignoring a leading "@" marker and case.
func ValidateAccountName(s, fieldName string) error {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
	if err := ValidateStringNotEmpty(name, fieldName); err != nil {
		return err
	}
	if !accountNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %s ('%s') is not a valid account name", ErrValidationFailed, fieldName, s)
	}
	return nil
}

// --- Numeric Validators ---

// ValidateFloatString parses a string to float and checks if it's within a range.
// An empty string is treated as 0.
func ValidateFloatString(s, fieldName string, allowNegative bool, minVal, maxVal float64) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}

	val, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ('%s') is not a valid number: %v", ErrValidationFailed, fieldName, s, err)
	}
	if !allowNegative && val < 0 {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", val)
		return 0, fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	if val < minVal || val > maxVal {
		logger.L.Warn("Float value out of range", "field", fieldName, "value", val, "min", minVal, "max", maxVal)
		return 0, fmt.Errorf("%w: %s must be between %.2f and %.2f, got %.2f", ErrValidationFailed, fieldName, minVal, maxVal, val)
	}
	return val, nil
}

// ValidateIntString parses a string to int and checks if it's within a range.
func ValidateIntString(s, fieldName string, minVal, maxVal int) (int, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return 0, err
	}

	val, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ('%s') is not a valid integer: %v", ErrValidationFailed, fieldName, s, err)
	}
	if val < minVal || val > maxVal {
		return 0, fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrValidationFailed, fieldName, minVal, maxVal, val)
	}
	return val, nil
}
