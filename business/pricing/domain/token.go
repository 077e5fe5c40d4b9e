// Package domain contains the core domain types for the pricing context.
package domain

import (
	"fmt"

	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

// Token identifies an asset on a specific network. Immutable once constructed.
type Token struct {
	symbol   string
	network  string
	decimals int
}

// NewToken creates a Token, validating its fields.
func NewToken(symbol, network string, decimals int) (Token, error) {
	if symbol == "" {
		return Token{}, apperror.Validation(apperror.CodeRequiredField, "token symbol")
	}
	if network == "" {
		return Token{}, apperror.Validation(apperror.CodeRequiredField, "token network")
	}
	if decimals < 0 || decimals > 36 {
		return Token{}, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("token decimals %d out of range", decimals))
	}
	return Token{symbol: symbol, network: network, decimals: decimals}, nil
}

// MustToken creates a Token, panicking on invalid input. For tests and
// well-known constants.
func MustToken(symbol, network string, decimals int) Token {
	t, err := NewToken(symbol, network, decimals)
	if err != nil {
		panic(err)
	}
	return t
}

// Symbol returns the token symbol (e.g. "ETH").
func (t Token) Symbol() string { return t.symbol }

// Network returns the network identifier (e.g. "ethereum").
func (t Token) Network() string { return t.network }

// Decimals returns the token's decimal precision.
func (t Token) Decimals() int { return t.decimals }

// String returns "SYMBOL@network".
func (t Token) String() string {
	return t.symbol + "@" + t.network
}
