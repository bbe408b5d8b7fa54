package render

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

func formatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	value := amount.StringFixed(2)
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + value
	}
	return currency + " " + value
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("January 2, 2006")
}
