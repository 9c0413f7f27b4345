package transfer

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var (
	// MaxAirdropSOL is the largest airdrop the form will request.
	MaxAirdropSOL = decimal.NewFromInt(5)

	// DefaultAirdropSOL is requested when the airdrop field is left empty.
	DefaultAirdropSOL = decimal.NewFromInt(1)

	lamportsPerSOL = decimal.NewFromInt(int64(solanago.LAMPORTS_PER_SOL))
	maxLamports    = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

const maxDecimalExponent = 64

// ParseSOL parses a positive SOL amount and converts it to lamports.
// Amounts finer than one lamport or larger than a uint64 of lamports are
// rejected.
func ParseSOL(s string) (decimal.Decimal, uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, 0, fmt.Errorf("%w: %s must be greater than 0", ErrInvalidAmount, amount)
	}
	// Bound the exponent before any arithmetic; "1e-999999999" would
	// otherwise allocate a huge power of ten.
	switch exp := amount.Exponent(); {
	case exp < -maxDecimalExponent:
		return decimal.Zero, 0, fmt.Errorf("%w: %s has more than 9 decimal places", ErrInvalidAmount, s)
	case exp > maxDecimalExponent:
		return decimal.Zero, 0, fmt.Errorf("%w: %s is too large", ErrInvalidAmount, s)
	}

	lamports := amount.Mul(lamportsPerSOL)
	if !lamports.IsInteger() {
		return decimal.Zero, 0, fmt.Errorf("%w: %s has more than 9 decimal places", ErrInvalidAmount, amount)
	}
	if lamports.GreaterThan(maxLamports) {
		return decimal.Zero, 0, fmt.Errorf("%w: %s is too large", ErrInvalidAmount, amount)
	}

	return amount, lamports.BigInt().Uint64(), nil
}

// ParseAirdropSOL parses an airdrop amount. An empty string means
// DefaultAirdropSOL; anything above MaxAirdropSOL is rejected.
func ParseAirdropSOL(s string) (decimal.Decimal, uint64, error) {
	if strings.TrimSpace(s) == "" {
		s = DefaultAirdropSOL.String()
	}
	amount, lamports, err := ParseSOL(s)
	if err != nil {
		return decimal.Zero, 0, err
	}
	if amount.GreaterThan(MaxAirdropSOL) {
		return decimal.Zero, 0, fmt.Errorf("%w: %s exceeds the %s SOL airdrop limit", ErrInvalidAmount, amount, MaxAirdropSOL)
	}
	return amount, lamports, nil
}

// FormatLamports renders lamports as a SOL amount without trailing zeros.
func FormatLamports(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).String()
}
