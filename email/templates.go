package email

import (
	"fmt"
	"net/url"
	"strings"

	"garden-notifier/pkg/notifier"
)

func writeStyleHead(b *strings.Builder) {
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }\n")
	b.WriteString(".header { border-bottom: 2px solid #27ae60; padding-bottom: 10px; margin-bottom: 20px; }\n")
	b.WriteString(".section { margin-bottom: 25px; }\n")
	b.WriteString(".section h3 { color: #27ae60; margin-bottom: 8px; }\n")
	b.WriteString(".item { margin: 6px 0; }\n")
	b.WriteString(".item img { width: 24px; height: 24px; vertical-align: middle; margin-right: 8px; }\n")
	b.WriteString(".quantity { color: #7f8c8d; font-size: 0.9em; }\n")
	b.WriteString(".content { background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 15px 0; }\n")
	b.WriteString(".footer { margin-top: 30px; padding-top: 15px; border-top: 1px solid #ddd; font-size: 0.9em; color: #7f8c8d; }\n")
	b.WriteString(".footer a { color: #7f8c8d; text-decoration: underline; margin-right: 12px; }\n")
	b.WriteString("a { color: #27ae60; text-decoration: none; }\n")
	b.WriteString("a:hover { text-decoration: underline; }\n")
	b.WriteString("@media (prefers-color-scheme: dark) {\n")
	b.WriteString("body { background: #1a1a1a; color: #e0e0e0; }\n")
	b.WriteString(".header { border-bottom-color: #2ecc71; }\n")
	b.WriteString(".section h3 { color: #2ecc71; }\n")
	b.WriteString(".quantity { color: #a0a0a0; }\n")
	b.WriteString(".content { background: #2a2a2a; }\n")
	b.WriteString(".footer { border-top-color: #444; color: #a0a0a0; }\n")
	b.WriteString(".footer a { color: #a0a0a0; }\n")
	b.WriteString("a { color: #2ecc71; }\n")
	b.WriteString("}\n")
	b.WriteString("</style>\n</head>\n<body>\n")
}

func (s *Sender) writeFooter(b *strings.Builder, email string) {
	unsubURL := fmt.Sprintf("%s/unsubscribe?email=%s", s.baseURL, url.QueryEscape(email))
	b.WriteString("<div class=\"footer\">\n")
	b.WriteString(fmt.Sprintf("<a href=\"%s\">Unsubscribe</a>\n", escapeHTML(unsubURL)))
	b.WriteString("</div>\n")
}

// RenderStock builds the subject and body for a stock notification.
// Seeds and gear have already been filtered to the subscriber's interests.
func (s *Sender) RenderStock(sub *notifier.Subscription, seeds, gear []notifier.StockItem) (subject, body string) {
	names := make([]string, 0, len(seeds)+len(gear))
	for _, item := range seeds {
		names = append(names, item.DisplayName)
	}
	for _, item := range gear {
		names = append(names, item.DisplayName)
	}
	switch len(names) {
	case 0:
		subject = "Garden stock update"
	case 1:
		subject = fmt.Sprintf("In stock: %s", names[0])
	default:
		subject = fmt.Sprintf("In stock: %s and %d more", names[0], len(names)-1)
	}

	var b strings.Builder
	writeStyleHead(&b)

	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h2>Items you follow are in stock</h2>\n")
	b.WriteString("</div>\n")

	s.writeStockSection(&b, "Seeds", seeds)
	s.writeStockSection(&b, "Gear", gear)

	s.writeFooter(&b, sub.Email)
	b.WriteString("</body>\n</html>")

	return subject, b.String()
}

func (s *Sender) writeStockSection(b *strings.Builder, title string, items []notifier.StockItem) {
	if len(items) == 0 {
		return
	}
	b.WriteString("<div class=\"section\">\n")
	b.WriteString(fmt.Sprintf("<h3>%s</h3>\n", escapeHTML(title)))
	for _, item := range items {
		b.WriteString("<div class=\"item\">\n")
		if icon := s.icons.Icon(item.ID); icon != "" {
			b.WriteString(fmt.Sprintf("<img src=\"%s\" alt=\"\">", escapeHTML(icon)))
		}
		b.WriteString(fmt.Sprintf("<strong>%s</strong>", escapeHTML(item.DisplayName)))
		b.WriteString(fmt.Sprintf(" <span class=\"quantity\">&times;%d</span>\n", item.Quantity))
		b.WriteString("</div>\n")
	}
	b.WriteString("</div>\n")
}

// RenderWeather builds the subject and body for a weather event notification.
func (s *Sender) RenderWeather(sub *notifier.Subscription, event *notifier.WeatherEvent, invite string) (subject, body string) {
	subject = fmt.Sprintf("Weather event: %s", event.Name)

	var b strings.Builder
	writeStyleHead(&b)

	b.WriteString("<div class=\"header\">\n")
	b.WriteString(fmt.Sprintf("<h2>%s has started</h2>\n", escapeHTML(event.Name)))
	b.WriteString("</div>\n")

	duration := "Unknown"
	if event.DurationSeconds > 0 {
		duration = fmt.Sprintf("%d minutes", event.DurationSeconds/60)
	}
	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<p>A weather event is active in the garden: <strong>%s</strong></p>\n", escapeHTML(event.Name)))
	b.WriteString(fmt.Sprintf("<p>Expected duration: %s</p>\n", escapeHTML(duration)))
	b.WriteString("</div>\n")

	if invite != "" {
		b.WriteString(fmt.Sprintf("<p>Join the community on <a href=\"%s\">Discord</a>.</p>\n", escapeHTML(invite)))
	}

	s.writeFooter(&b, sub.Email)
	b.WriteString("</body>\n</html>")

	return subject, b.String()
}

func (s *Sender) formatVerificationBody(email, token string) string {
	verifyURL := fmt.Sprintf("%s/verify?email=%s&token=%s", s.baseURL, url.QueryEscape(email), url.QueryEscape(token))

	var b strings.Builder
	writeStyleHead(&b)

	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h2>Confirm your email address</h2>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString("<p>Someone asked to subscribe this address to garden stock and weather notifications.</p>\n")
	b.WriteString(fmt.Sprintf("<p><a href=\"%s\">Verify this email address</a></p>\n", escapeHTML(verifyURL)))
	b.WriteString("<p>The link expires in 24 hours. If you didn't request this, you can ignore this email.</p>\n")
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")

	return b.String()
}

func (s *Sender) formatWelcomeBody(sub *notifier.Subscription) string {
	var b strings.Builder
	writeStyleHead(&b)

	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h2>Garden Notification Subscription Confirmed</h2>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<p>You're subscribed to <strong>%d seeds</strong> and <strong>%d gear items</strong>.</p>\n",
		len(sub.Interest.SeedIDs), len(sub.Interest.GearIDs)))
	b.WriteString("<p>You'll get an email whenever an item you follow comes into stock, and whenever a weather event starts.</p>\n")
	b.WriteString("</div>\n")

	s.writeFooter(&b, sub.Email)
	b.WriteString("</body>\n</html>")

	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
