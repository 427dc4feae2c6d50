package handlers

import (
	"errors"

	"predictions/internal/money"
)

var errInvalidAmount = errors.New("invalid amount")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}
