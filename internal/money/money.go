package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// ParseMinor converts a decimal string like "166.67" into minor units (16667).
// At most two decimal places are accepted; stakes and payouts are stored exact.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	sign := int64(1)
	switch trimmed[0] {
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	parts := strings.SplitN(trimmed, ".", 2)
	wholePart := parts[0]
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) {
		return 0, ErrInvalidAmount
	}
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > 2 {
		return 0, ErrTooManyDecimals
	}
	if fracPart != "" && !isDigits(fracPart) {
		return 0, ErrInvalidAmount
	}
	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	frac := int64(0)
	if len(fracPart) == 1 {
		frac = int64(fracPart[0]-'0') * 10
	} else if len(fracPart) == 2 {
		value, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		frac = value
	}
	minor := whole*100 + frac
	return sign * minor, nil
}

func FormatMinor(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	whole := value / 100
	frac := value % 100
	formatted := fmt.Sprintf("%d.%02d", whole, frac)
	if negative {
		return "-" + formatted
	}
	return formatted
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
