package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice_USConvention(t *testing.T) {
	amount, currency, ok := ParsePrice("$1,234.56")
	assert.True(t, ok)
	assert.Equal(t, 1234.56, amount)
	assert.Equal(t, "USD", currency)
}

func TestParsePrice_EuropeanConvention(t *testing.T) {
	amount, currency, ok := ParsePrice("29,99 €")
	assert.True(t, ok)
	assert.Equal(t, 29.99, amount)
	assert.Equal(t, "EUR", currency)
}

func TestParsePrice_EuropeanThousands(t *testing.T) {
	amount, currency, ok := ParsePrice("1.234,56 CHF")
	assert.True(t, ok)
	assert.Equal(t, 1234.56, amount)
	assert.Equal(t, "CHF", currency)
}

func TestParsePrice_RejectsFinancing(t *testing.T) {
	cases := []string{
		"$25/mo for 24 months",
		"From $41.62/mo with Affirm",
		"4 payments of $25.00",
		"$10 a month",
		"24 monthly installments",
	}
	for _, text := range cases {
		_, _, ok := ParsePrice(text)
		assert.False(t, ok, "expected %q to be rejected", text)
	}
}

func TestParsePrice_SingleSeparatorHeuristics(t *testing.T) {
	cases := []struct {
		text   string
		amount float64
	}{
		{"1,234", 1234},        // thousands grouping
		{"1234,5", 1234.5},     // decimal
		{"29,99", 29.99},       // decimal
		{"1.234", 1234},        // thousands grouping
		{"1234.56", 1234.56},   // decimal
		{"1,234,567", 1234567}, // repeated separator is always grouping
	}
	for _, tc := range cases {
		amount, _, ok := ParsePrice(tc.text)
		assert.True(t, ok, "expected %q to parse", tc.text)
		assert.Equal(t, tc.amount, amount, "for %q", tc.text)
	}
}

func TestParsePrice_CurrencyInference(t *testing.T) {
	cases := []struct {
		text     string
		currency string
	}{
		{"£9.99", "GBP"},
		{"USD 49.00", "USD"},
		{"1 299,00 zł", "PLN"},
		{"R$ 199,90", "BRL"},
		{"Price: 100", "USD"}, // no symbol defaults to USD
	}
	for _, tc := range cases {
		_, currency, ok := ParsePrice(tc.text)
		assert.True(t, ok, "expected %q to parse", tc.text)
		assert.Equal(t, tc.currency, currency, "for %q", tc.text)
	}
}

func TestParsePrice_SpaceGroupedThousands(t *testing.T) {
	amount, _, ok := ParsePrice("1 299,00 zł")
	assert.True(t, ok)
	assert.Equal(t, 1299.00, amount)
}

func TestParsePrice_Invalid(t *testing.T) {
	cases := []string{"", "   ", "Contact us for pricing", "$0.00", "0"}
	for _, text := range cases {
		_, _, ok := ParsePrice(text)
		assert.False(t, ok, "expected %q to be invalid", text)
	}
}
