package services

import (
	"errors"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be a positive number")

var amountFormatter = money.NewFormatter(0, ".", ",", "so'm", "1 $")

// ParseAmount reads a user-typed amount. Spaces are ignored and a lone comma is a decimal separator.
func ParseAmount(text string) (float64, error) {
	s := strings.NewReplacer(" ", "", "\u00a0", "", "_", "").Replace(strings.TrimSpace(text))
	if strings.Contains(s, ",") && !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatAmount renders an amount rounded to whole units with thousands separators.
func FormatAmount(v float64) string {
	return amountFormatter.Format(decimal.NewFromFloat(v).Round(0).IntPart())
}
