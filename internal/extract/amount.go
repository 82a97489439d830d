// Package extract turns rendered page state into typed values. Nothing here touches the page.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

const (
	decimalPrecision = 34

	amountGrammar = `[+-]?digits[,digits]*[.digits]`
	countGrammar  = `[+-]?digits[,digits]*`

	errorMessageParse          = "extract: parse error"
	errorMessageMissingSymbol  = "extract: currency symbol not found"
	errorMessageArithmetic     = "extract: amount arithmetic"
	errorMessageNegativeDigits = "extract: negative rounding precision"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New(errorMessageParse)

var (
	amountPattern = regexp.MustCompile(`^[+-]?\d+(,\d+)*(\.\d+)?$`)
	countPattern  = regexp.MustCompile(`^[+-]?\d+(,\d+)*$`)

	currencyMarkers = []string{"INR", "Rs.", "Rs", "₹", "$", "€", "£"}

	arithmeticContext = newArithmeticContext()
)

func newArithmeticContext() *apd.Context {
	context := apd.BaseContext.WithPrecision(decimalPrecision)
	context.Rounding = apd.RoundHalfUp
	return context
}

// ParseError reports text that does not match the expected numeric grammar.
type ParseError struct {
	Input   string
	Grammar string
	Err     error
}

func (parseError *ParseError) Error() string {
	message := fmt.Sprintf("%s: %q does not match %s", errorMessageParse, parseError.Input, parseError.Grammar)
	if parseError.Err != nil {
		message += ": " + parseError.Err.Error()
	}
	return message
}

func (parseError *ParseError) Unwrap() []error {
	if parseError.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, parseError.Err}
}

// Amount is a fixed-point currency value. The zero Amount is 0.
type Amount struct {
	value *apd.Decimal
}

// ParseAmount reads a localized currency string such as "₹1,22,000.00" or "Rs. 500".
// Currency markers, whitespace and thousands separators are discarded.
func ParseAmount(text string) (Amount, error) {
	cleaned := stripCurrencyMarkers(text)
	if !amountPattern.MatchString(cleaned) {
		return Amount{}, &ParseError{Input: text, Grammar: amountGrammar}
	}
	decimal, _, parseErr := apd.NewFromString(strings.ReplaceAll(cleaned, ",", ""))
	if parseErr != nil {
		return Amount{}, &ParseError{Input: text, Grammar: amountGrammar, Err: parseErr}
	}
	return Amount{value: decimal}, nil
}

// AmountAfterSymbol parses the amount following the first occurrence of symbol, as in
// "Total Price: ₹500.00".
func AmountAfterSymbol(text string, symbol string) (Amount, error) {
	_, after, found := strings.Cut(text, symbol)
	if !found {
		return Amount{}, &ParseError{Input: text, Grammar: symbol + amountGrammar, Err: errors.New(errorMessageMissingSymbol)}
	}
	return ParseAmount(after)
}

func AmountFromInt(value int64) Amount {
	return Amount{value: apd.New(value, 0)}
}

// AmountFromFloat converts using the shortest decimal representation of value, so
// 121999.999 stays 121999.999.
func AmountFromFloat(value float64) (Amount, error) {
	decimal, setErr := new(apd.Decimal).SetFloat64(value)
	if setErr != nil {
		return Amount{}, fmt.Errorf("%s: %w", errorMessageArithmetic, setErr)
	}
	return Amount{value: decimal}, nil
}

func (amount Amount) decimal() *apd.Decimal {
	if amount.value == nil {
		return apd.New(0, 0)
	}
	return amount.value
}

func (amount Amount) Add(other Amount) (Amount, error) {
	sum := new(apd.Decimal)
	if _, addErr := arithmeticContext.Add(sum, amount.decimal(), other.decimal()); addErr != nil {
		return Amount{}, fmt.Errorf("%s: %w", errorMessageArithmetic, addErr)
	}
	return Amount{value: sum}, nil
}

// Mul multiplies by a whole quantity.
func (amount Amount) Mul(quantity int64) (Amount, error) {
	product := new(apd.Decimal)
	if _, mulErr := arithmeticContext.Mul(product, amount.decimal(), apd.New(quantity, 0)); mulErr != nil {
		return Amount{}, fmt.Errorf("%s: %w", errorMessageArithmetic, mulErr)
	}
	return Amount{value: product}, nil
}

// Round rounds half-up to precision fractional digits.
func (amount Amount) Round(precision int) (Amount, error) {
	if precision < 0 {
		return Amount{}, errors.New(errorMessageNegativeDigits)
	}
	rounded := new(apd.Decimal)
	if _, quantizeErr := arithmeticContext.Quantize(rounded, amount.decimal(), -int32(precision)); quantizeErr != nil {
		return Amount{}, fmt.Errorf("%s: %w", errorMessageArithmetic, quantizeErr)
	}
	return Amount{value: rounded}, nil
}

// Cmp compares numerically: 500 and 500.00 are equal.
func (amount Amount) Cmp(other Amount) int {
	return amount.decimal().Cmp(other.decimal())
}

func (amount Amount) IsZero() bool {
	return amount.decimal().IsZero()
}

func (amount Amount) String() string {
	return amount.decimal().Text('f')
}

// ParseCount reads an integer such as a quantity or a stock level.
func ParseCount(text string) (int64, error) {
	cleaned := strings.Join(strings.Fields(text), "")
	if !countPattern.MatchString(cleaned) {
		return 0, &ParseError{Input: text, Grammar: countGrammar}
	}
	count, parseErr := strconv.ParseInt(strings.ReplaceAll(cleaned, ",", ""), 10, 64)
	if parseErr != nil {
		return 0, &ParseError{Input: text, Grammar: countGrammar, Err: parseErr}
	}
	return count, nil
}

// stripCurrencyMarkers also drops every kind of whitespace, non-breaking spaces included.
func stripCurrencyMarkers(text string) string {
	cleaned := text
	for _, marker := range currencyMarkers {
		cleaned = strings.ReplaceAll(cleaned, marker, "")
	}
	return strings.Join(strings.Fields(cleaned), "")
}
