package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/leekchan/accounting"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	domain "github.com/upfront-market/api/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	SubjectOrderPaid    = "Order placed successfully"
	SubjectVendorSale   = "New sale!"
	SubjectAdminOrder   = "New order placed"
	SubjectAdminPayment = "Order payment received"
)

// Renderer turns order snapshots into email bodies.
type Renderer struct {
	templates *template.Template
	money     accounting.Accounting
	sanitizer *bluemonday.Policy
}

// NewRenderer parses the embedded templates. symbol is the settings currency symbol.
func NewRenderer(symbol string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("notify: parse templates: %w", err)
	}
	if strings.TrimSpace(symbol) == "" {
		symbol = "$"
	}
	return &Renderer{
		templates: tmpl,
		money:     accounting.Accounting{Symbol: symbol, Precision: domain.MoneyPlaces, Thousand: ",", Decimal: "."},
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// WithSymbol returns a copy of the renderer formatting money with symbol.
func (r *Renderer) WithSymbol(symbol string) *Renderer {
	if r == nil || strings.TrimSpace(symbol) == "" || symbol == r.money.Symbol {
		return r
	}
	clone := *r
	clone.money.Symbol = symbol
	return &clone
}

type itemView struct {
	Title    string
	Size     string
	Qty      int
	SubTotal string
	Total    string
}

type orderView struct {
	OID           string
	BuyerName     string
	BuyerEmail    string
	Address       string
	PaymentMethod string
	PaymentStatus string
	Items         []itemView
	SubTotal      string
	Shipping      string
	TaxFee        string
	ServiceFee    string
	Total         string
	Saved         string
	HasSaved      bool
	VendorCount   int
}

type vendorSaleView struct {
	orderView
	VendorName     string
	VendorSubTotal string
	VendorShipping string
	VendorTotal    string
}

type adminOrderView struct {
	orderView
	Headline string
}

// CustomerOrderConfirmation renders the buyer receipt.
func (r *Renderer) CustomerOrderConfirmation(order domain.Order) (Message, error) {
	body, err := r.execute("customer_order_confirmation.html", r.orderView(order, order.Items))
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []Address{{Name: r.clean(order.Contact.FullName), Email: order.Contact.Email}},
		Subject: SubjectOrderPaid,
		HTML:    body,
		Text:    fmt.Sprintf("Your order #%s has been paid. Total: %s", order.OID, r.format(order.Amounts.Total)),
	}, nil
}

// VendorSale renders the per-vendor sale notice over that vendor's items only.
func (r *Renderer) VendorSale(order domain.Order, vendor domain.Vendor, recipient string) (Message, error) {
	items := order.ItemsForVendor(vendor.ID)
	totals := VendorTotals(items)
	view := vendorSaleView{
		orderView:      r.orderView(order, items),
		VendorName:     r.clean(vendor.Name),
		VendorSubTotal: r.format(totals.SubTotal),
		VendorShipping: r.format(totals.Shipping),
		VendorTotal:    r.format(totals.SubTotal.Add(totals.Shipping)),
	}
	body, err := r.execute("vendor_sale.html", view)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []Address{{Name: r.clean(vendor.Name), Email: recipient}},
		Subject: SubjectVendorSale,
		HTML:    body,
		Text:    fmt.Sprintf("New sale on order #%s. Vendor total: %s", order.OID, view.VendorTotal),
	}, nil
}

// AdminOrder renders the operations notice for a created or paid order.
func (r *Renderer) AdminOrder(order domain.Order, subject string, recipient string) (Message, error) {
	view := adminOrderView{orderView: r.orderView(order, order.Items), Headline: subject}
	body, err := r.execute("admin_order.html", view)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []Address{{Name: "Operations", Email: recipient}},
		Subject: subject,
		HTML:    body,
		Text:    fmt.Sprintf("%s: #%s total %s", subject, order.OID, view.Total),
	}, nil
}

// VendorTotals sums sub-total and shipping over the given items.
func VendorTotals(items []domain.OrderItem) domain.LineAmounts {
	var totals domain.LineAmounts
	for _, item := range items {
		totals = totals.Add(item.Amounts)
	}
	return totals
}

func (r *Renderer) orderView(order domain.Order, items []domain.OrderItem) orderView {
	view := orderView{
		OID:           order.OID,
		BuyerName:     r.clean(order.Contact.FullName),
		BuyerEmail:    r.clean(order.Contact.Email),
		Address:       r.address(order.Contact),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		SubTotal:      r.format(order.Amounts.SubTotal),
		Shipping:      r.format(order.Amounts.Shipping),
		TaxFee:        r.format(order.Amounts.TaxFee),
		ServiceFee:    r.format(order.Amounts.ServiceFee),
		Total:         r.format(order.Amounts.Total),
		Saved:         r.format(order.Saved),
		HasSaved:      order.Saved.IsPositive(),
		VendorCount:   len(order.VendorIDs),
	}
	for _, item := range items {
		view.Items = append(view.Items, itemView{
			Title:    r.clean(item.ProductTitle),
			Size:     r.clean(item.Size),
			Qty:      item.Qty,
			SubTotal: r.format(item.Amounts.SubTotal),
			Total:    r.format(item.Amounts.Total),
		})
	}
	return view
}

func (r *Renderer) address(c domain.OrderContact) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{c.Address, c.City, c.State, c.Country} {
		if v := r.clean(p); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// clean strips markup from buyer supplied text. Entities are decoded again because
// html/template escapes on output.
func (r *Renderer) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.sanitizer.Sanitize(s)))
}

func (r *Renderer) format(v decimal.Decimal) string {
	return r.money.FormatMoneyDecimal(domain.RoundMoney(v))
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return buf.String(), nil
}
