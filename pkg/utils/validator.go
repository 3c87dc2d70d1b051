package utils

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidSpread   = errors.New("invalid spread")
	ErrInvalidVolume   = errors.New("invalid volume")
	ErrInvalidNOrders  = errors.New("invalid order count")
	ErrInvalidSL       = errors.New("invalid stop loss")
	ErrInvalidLeverage = errors.New("invalid leverage")
	ErrInvalidPercent  = errors.New("invalid percentage")
)

const (
	minSymbolLen = 2
	maxSymbolLen = 31
	maxSpread    = 100.0
	maxVolume    = 1e9
	maxNOrders   = 100
	maxLeverage  = 100
)

// ValidateSymbol checks that symbol is a plausible instrument identifier:
// 2-31 characters, letters/digits plus '-', '_', '/'.
func ValidateSymbol(symbol string) error {
	if len(symbol) < minSymbolLen || len(symbol) > maxSymbolLen {
		return fmt.Errorf("%w: length must be %d-%d", ErrInvalidSymbol, minSymbolLen, maxSymbolLen)
	}
	for _, r := range symbol {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '/':
		default:
			return fmt.Errorf("%w: disallowed character %q", ErrInvalidSymbol, r)
		}
	}
	return nil
}

// NormalizeSymbol uppercases a symbol and strips separator characters.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return s
}

var knownQuoteCurrencies = []string{"USDT", "USDC", "BUSD", "BTC", "ETH"}

// ExtractBaseCurrency returns the base currency of a symbol, e.g. "BTC"
// from "BTCUSDT".
func ExtractBaseCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, q := range knownQuoteCurrencies {
		if strings.HasSuffix(norm, q) && len(norm) > len(q) {
			return norm[:len(norm)-len(q)]
		}
	}
	return norm
}

// ExtractQuoteCurrency returns the quote currency of a symbol, e.g.
// "USDT" from "BTCUSDT".
func ExtractQuoteCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, q := range knownQuoteCurrencies {
		if strings.HasSuffix(norm, q) && len(norm) > len(q) {
			return q
		}
	}
	return ""
}

// ValidateSpread checks spread is within (0, maxSpread].
func ValidateSpread(spread float64) error {
	if spread <= 0 || spread > maxSpread {
		return fmt.Errorf("%w: must be in (0, %v]", ErrInvalidSpread, maxSpread)
	}
	return nil
}

// ValidateVolume checks volume is within (0, maxVolume).
func ValidateVolume(volume float64) error {
	if volume <= 0 || volume >= maxVolume {
		return fmt.Errorf("%w: must be in (0, %v)", ErrInvalidVolume, maxVolume)
	}
	return nil
}

// ValidateNOrders checks n is within [1, maxNOrders].
func ValidateNOrders(n int) error {
	if n < 1 || n > maxNOrders {
		return fmt.Errorf("%w: must be in [1, %d]", ErrInvalidNOrders, maxNOrders)
	}
	return nil
}

// ValidateStopLoss checks sl is within (0, maxSpread].
func ValidateStopLoss(sl float64) error {
	if sl <= 0 || sl > maxSpread {
		return fmt.Errorf("%w: must be in (0, %v]", ErrInvalidSL, maxSpread)
	}
	return nil
}

// ValidateLeverage checks leverage is within [1, maxLeverage].
func ValidateLeverage(leverage int) error {
	if leverage < 1 || leverage > maxLeverage {
		return fmt.Errorf("%w: must be in [1, %d]", ErrInvalidLeverage, maxLeverage)
	}
	return nil
}

// ValidatePercentage checks pct is within [0, 100].
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: must be in [0, 100]", ErrInvalidPercent)
	}
	return nil
}

// IsValidSymbol reports whether symbol passes ValidateSymbol.
func IsValidSymbol(symbol string) bool { return ValidateSymbol(symbol) == nil }

// ValidationErrors accumulates field-scoped validation failures.
type ValidationErrors []fieldError

type fieldError struct {
	Field string
	Msg   string
}

// Add appends a field error built from a plain message.
func (e *ValidationErrors) Add(field, msg string) {
	*e = append(*e, fieldError{Field: field, Msg: msg})
}

// AddError appends a field error from err, ignoring a nil err.
func (e *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, fieldError{Field: field, Msg: err.Error()})
}

// HasErrors reports whether any errors were accumulated.
func (e ValidationErrors) HasErrors() bool { return len(e) > 0 }

// Error implements the error interface, joining all field errors.
func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Msg)
	}
	return strings.Join(parts, "; ")
}
