// Package moneypkg provides fixed-point helpers for ledger amounts.
//
// Amounts and balances are stored as NUMERIC(36,18): at most 18 integer digits
// and exactly 18 fractional digits.
package moneypkg

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Storage shape of every decimal column.
const (
	Precision = 36
	Scale     = 18
)

var (
	// ErrInvalidDecimal indicates that the value is not a decimal number.
	ErrInvalidDecimal = errors.New("invalid decimal")
	// ErrOutOfRange indicates that the value does not fit NUMERIC(36,18).
	ErrOutOfRange = errors.New("decimal out of range")
)

// Parse converts s into a decimal that fits the storage shape.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidDecimal
	}

	if !Fits(d) {
		return decimal.Decimal{}, ErrOutOfRange
	}

	return d, nil
}

// Fits reports whether d can be stored without rounding or overflow.
func Fits(d decimal.Decimal) bool {
	if d.Exponent() < -Scale && !d.Equal(d.Truncate(Scale)) {
		return false
	}

	integer := d.Abs().Truncate(0).String()

	return len(integer) <= Precision-Scale
}

// ValidDecimal validates that a string field holds a storable decimal.
var ValidDecimal validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		_, err := Parse(s)
		return err == nil
	}

	return false
}
