package telegram

import (
	"fmt"
	"time"
)

// EventType identifies the kind of tracking event being notified.
type EventType string

const (
	PriceDrop   EventType = "price_drop"
	TargetPrice EventType = "target_price"
	BackInStock EventType = "back_in_stock"
)

// FormatPriceDrop renders a price drop notification.
func FormatPriceDrop(itemName, url string, oldPrice, newPrice float64, currency string) string {
	return fmt.Sprintf("📉 *Price Drop*\n\n*%s*\n%s %.2f → %s %.2f\n\n[View product](%s)\n_%s_",
		escapeMarkdown(itemName), currency, oldPrice, currency, newPrice, url, time.Now().Format("2 Jan 2006 15:04"))
}

// FormatTargetPrice renders a target price reached notification.
func FormatTargetPrice(itemName, url string, targetPrice, newPrice float64, currency string) string {
	return fmt.Sprintf("🎯 *Target Price Reached*\n\n*%s*\nNow %s %.2f (target %s %.2f)\n\n[View product](%s)\n_%s_",
		escapeMarkdown(itemName), currency, newPrice, currency, targetPrice, url, time.Now().Format("2 Jan 2006 15:04"))
}

// FormatBackInStock renders a back in stock notification.
func FormatBackInStock(itemName, url string, price float64, currency string) string {
	priceLine := ""
	if price > 0 {
		priceLine = fmt.Sprintf("\nPrice: %s %.2f", currency, price)
	}
	return fmt.Sprintf("✅ *Back In Stock*\n\n*%s*%s\n\n[View product](%s)\n_%s_",
		escapeMarkdown(itemName), priceLine, url, time.Now().Format("2 Jan 2006 15:04"))
}

func escapeMarkdown(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '*', '_', '`', '[':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
