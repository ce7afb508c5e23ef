package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Financing and installment phrasing is never a product price.
var financingPattern = regexp.MustCompile(`(?i)(/\s*mo\b|\bmo\.|/\s*month|per\s+month|a\s+month|monthly|\d+\s+payments?\s+of|payments?\s+of|installments?|\bfinanc\w*|with\s+affirm|with\s+klarna|afterpay)`)

var numberPattern = regexp.MustCompile(`\d[\d.,\s]*\d|\d`)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"R$", "BRL"},
	{"zł", "PLN"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

var currencyCodePattern = regexp.MustCompile(`\b(USD|EUR|GBP|CHF|JPY|CAD|AUD|NZD|SEK|NOK|DKK|PLN|INR|BRL|MXN)\b`)

// ParsePrice normalizes free text into an amount rounded to two decimals and
// an ISO currency code. It handles both US (1,234.56) and European (1.234,56)
// separator conventions, currency symbols or codes in pre- or post-fix
// position, and rejects financing phrasing outright. The boolean is false
// when no valid price is present.
func ParsePrice(text string) (float64, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}

	if financingPattern.MatchString(text) {
		return 0, "", false
	}

	numStr := numberPattern.FindString(text)
	if numStr == "" {
		return 0, "", false
	}

	amount, ok := parseAmount(numStr)
	if !ok || amount <= 0 {
		return 0, "", false
	}

	return math.Round(amount*100) / 100, inferCurrency(text), true
}

// parseAmount resolves the thousands/decimal separator convention and parses
// the numeric portion.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: the rightmost separator is the decimal one.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = resolveSingleSeparator(s, ",")
	case lastDot >= 0:
		s = resolveSingleSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// resolveSingleSeparator decides whether a lone separator groups thousands or
// marks decimals. Multiple occurrences, or a trailing group of exactly three
// digits with at least four digits before it, read as thousands grouping;
// otherwise the separator is decimal.
func resolveSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 2 {
		return strings.ReplaceAll(s, sep, "")
	}
	// One occurrence: "1,234" is a thousand, "29,99" and "1234,5" are decimals.
	if len(parts[1]) == 3 && len(parts[0]) <= 3 {
		return parts[0] + parts[1]
	}
	return parts[0] + "." + parts[1]
}

// inferCurrency looks for an explicit symbol or code in the text, defaulting
// to USD when nothing is adjacent to the number.
func inferCurrency(text string) string {
	if m := currencyCodePattern.FindString(strings.ToUpper(text)); m != "" {
		return m
	}
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			return c.code
		}
	}
	return "USD"
}
