// Package money formats dollar amounts for display.
package money

import (
	"fmt"
	"math"

	gomoney "github.com/Rhymond/go-money"
)

// FormatUSD renders an amount as US dollars, rounded to cents.
func FormatUSD(amount float64) string {
	cents := int64(math.Round(amount * 100))
	return gomoney.New(cents, gomoney.USD).Display()
}

// FormatPrice renders a unit price. Sub-cent prices common for small-cap
// coins keep enough significant decimals to stay meaningful instead of
// collapsing to $0.00.
func FormatPrice(price float64) string {
	abs := math.Abs(price)
	if abs >= 0.01 || price == 0 {
		return FormatUSD(price)
	}
	if abs >= 0.0001 {
		return fmt.Sprintf("$%.6f", price)
	}
	return fmt.Sprintf("$%.8f", price)
}
