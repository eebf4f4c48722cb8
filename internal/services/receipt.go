package services

import (
	"bytes"
	"html/template"

	"canteen-backend/internal/models"
	"canteen-backend/internal/timeutil"
)

// receiptTemplate is the 80mm thermal layout the silent-print service
// expects: plain HTML, inline styles, no external assets.
var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>
body { font-family: monospace; width: 280px; margin: 0; padding: 8px; }
h1 { font-size: 14px; text-align: center; margin: 4px 0; }
.meta { font-size: 11px; text-align: center; margin-bottom: 6px; }
table { width: 100%; font-size: 11px; border-collapse: collapse; }
td.qty { text-align: right; white-space: nowrap; }
td.amt { text-align: right; white-space: nowrap; }
tr.total td { border-top: 1px dashed #000; font-weight: bold; padding-top: 3px; }
.footer { font-size: 10px; text-align: center; margin-top: 8px; }
</style></head>
<body>
<h1>{{.TheaterName}}</h1>
<div class="meta">
Order #{{.Order.OrderNumber}} &middot; {{.Channel}}<br>
{{.PlacedAt}}
{{if .Order.CustomerName}}<br>{{.Order.CustomerName}}{{end}}
</div>
<table>
{{range .Order.Items}}
<tr><td>{{.Name}}</td><td class="qty">{{.Quantity}} x {{printf "%.2f" .UnitPrice}}</td><td class="amt">{{printf "%.2f" .TotalPrice}}</td></tr>
{{end}}
<tr><td colspan="2">Subtotal</td><td class="amt">{{printf "%.2f" .Order.Subtotal}}</td></tr>
{{if gt .Order.Tax 0.0}}<tr><td colspan="2">GST</td><td class="amt">{{printf "%.2f" .Order.Tax}}</td></tr>{{end}}
{{if gt .Order.ServiceCharge 0.0}}<tr><td colspan="2">Service charge</td><td class="amt">{{printf "%.2f" .Order.ServiceCharge}}</td></tr>{{end}}
{{if gt .Order.Discount 0.0}}<tr><td colspan="2">Discount</td><td class="amt">-{{printf "%.2f" .Order.Discount}}</td></tr>{{end}}
<tr class="total"><td colspan="2">TOTAL</td><td class="amt">{{printf "%.2f" .Order.Total}}</td></tr>
</table>
<div class="footer">Payment: {{.Order.PaymentMethod}} ({{.Order.PaymentStatus}})<br>Thank you, enjoy the show!</div>
</body>
</html>`))

type receiptData struct {
	Order       *models.Order
	TheaterName string
	Channel     string
	PlacedAt    string
}

// RenderReceipt produces the HTML pushed to the theater's print agent
func RenderReceipt(order *models.Order, theaterName string) (string, error) {
	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, receiptData{
		Order:       order,
		TheaterName: theaterName,
		Channel:     string(order.Channel),
		PlacedAt:    timeutil.FormatIST(order.CreatedAt, "02 Jan 2006 15:04"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
