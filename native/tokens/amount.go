package tokens

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseDecimal converts a human-readable decimal string into an integer
// scaled by 10^decimals. This is the only place human values cross into
// ledger amounts; everything past this boundary is integer arithmetic.
func ParseDecimal(value string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("amount must not be negative: %q", value)
	}
	whole, frac := trimmed, ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole, frac = trimmed[:idx], trimmed[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", value, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return out, nil
}

// FormatUnits renders an integer amount scaled by 10^decimals back into a
// human-readable decimal string, trimming trailing zeros from the fraction.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Set(amount), scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := frac.String()
	if pad := int(decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	return whole.String() + "." + strings.TrimRight(fracStr, "0")
}

// ParseAmount parses a positive integer amount expressed in the token's
// native units (the on-ledger representation used over RPC).
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	out, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", value)
	}
	if out.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative: %q", value)
	}
	return out, nil
}
