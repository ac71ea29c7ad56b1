package email

import (
	"fmt"
	"strings"
)

// OrderLine is one item row in an invoice email.
type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice int // minor currency units
}

// BuildInvoiceBody renders the HTML order confirmation.
func BuildInvoiceBody(orderKey string, total int, items []OrderLine) string {
	var rows strings.Builder
	for _, line := range items {
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			line.Name,
			line.Quantity,
			FormatMinor(line.UnitPrice),
			FormatMinor(line.UnitPrice*line.Quantity),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #b5651d; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thanks for your order</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="border-bottom: 2px solid #b5651d;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Total</th>
				</tr>
			</thead>
			<tbody>%s</tbody>
		</table>
		<p style="text-align: right; font-size: 18px; font-weight: bold;">Total: %s</p>
		<p style="color: #666; font-size: 14px;">We'll send another email once your candles ship.</p>
	</div>
</body>
</html>`, orderKey, rows.String(), FormatMinor(total))
}

// BuildShippingBody renders the HTML shipping update.
func BuildShippingBody(orderKey, trackingNumber, status string) string {
	tracking := ""
	if trackingNumber != "" {
		tracking = fmt.Sprintf(
			`<p>Tracking number: <strong style="font-family: monospace;">%s</strong></p>`,
			trackingNumber)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Your order is %s</h1>
	<p>Order <strong style="font-family: monospace;">%s</strong></p>
	%s
</body>
</html>`, status, orderKey, tracking)
}

// FormatMinor renders minor currency units as a dollar string.
func FormatMinor(minor int) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s$%d.%02d", sign, minor/100, minor%100)
}
