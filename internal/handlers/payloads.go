package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

// money renders monetary values with two fractional digits.
func money(v decimal.Decimal) string {
	return v.StringFixed(domain.MoneyPlaces)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func currentIdentity(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		return nil, false
	}
	return identity, true
}

func resultFromPayment(result services.PaymentResult) httpx.Result {
	out := httpx.Result{Status: httpx.ResultStatus(result.Status), Message: result.Message}
	if result.Order != nil {
		out.Data = map[string]any{
			"order_oid":      result.Order.OID,
			"payment_status": string(result.Order.PaymentStatus),
			"order_status":   string(result.Order.OrderStatus),
		}
	}
	return out
}

type amountsPayload struct {
	Price      string `json:"price"`
	SubTotal   string `json:"sub_total"`
	Shipping   string `json:"shipping_amount"`
	TaxFee     string `json:"tax_fee"`
	ServiceFee string `json:"service_fee"`
	Total      string `json:"total"`
}

func buildAmounts(a domain.LineAmounts) amountsPayload {
	return amountsPayload{
		Price:      money(a.Price),
		SubTotal:   money(a.SubTotal),
		Shipping:   money(a.Shipping),
		TaxFee:     money(a.TaxFee),
		ServiceFee: money(a.ServiceFee),
		Total:      money(a.Total),
	}
}

type cartItemPayload struct {
	ID        string `json:"id"`
	CartID    string `json:"cart_id"`
	UserID    string `json:"user_id,omitempty"`
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	Qty       int    `json:"qty"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Country   string `json:"country,omitempty"`
	amountsPayload
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildCartItem(item domain.CartItem) cartItemPayload {
	payload := cartItemPayload{
		ID:             item.ID,
		CartID:         item.CartID,
		ProductID:      item.ProductID,
		VendorID:       item.VendorID,
		Qty:            item.Qty,
		Color:          item.Color,
		Size:           item.Size,
		Country:        item.Country,
		amountsPayload: buildAmounts(item.Amounts),
		UpdatedAt:      formatTime(item.UpdatedAt),
	}
	if item.UserID != nil {
		payload.UserID = *item.UserID
	}
	return payload
}

type orderItemPayload struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	ProductTitle string `json:"product_title"`
	VendorID     string `json:"vendor_id"`
	Qty          int    `json:"qty"`
	Color        string `json:"color,omitempty"`
	Size         string `json:"size,omitempty"`
	Country      string `json:"country,omitempty"`
	amountsPayload
	Saved        string   `json:"saved"`
	InitialTotal string   `json:"initial_total"`
	CouponIDs    []string `json:"coupon_ids,omitempty"`
}

type orderPayload struct {
	OID           string             `json:"oid"`
	BuyerID       string             `json:"buyer_id,omitempty"`
	FullName      string             `json:"full_name"`
	Email         string             `json:"email"`
	Mobile        string             `json:"mobile"`
	Address       string             `json:"address"`
	City          string             `json:"city"`
	State         string             `json:"state"`
	Country       string             `json:"country"`
	VendorIDs     []string           `json:"vendor_ids"`
	PaymentMethod string             `json:"payment_method"`
	PaymentStatus string             `json:"payment_status"`
	OrderStatus   string             `json:"order_status"`
	SubTotal      string             `json:"sub_total"`
	Shipping      string             `json:"shipping_amount"`
	TaxFee        string             `json:"tax_fee"`
	ServiceFee    string             `json:"service_fee"`
	Total         string             `json:"total"`
	Saved         string             `json:"saved"`
	InitialTotal  string             `json:"initial_total"`
	Items         []orderItemPayload `json:"items"`
	CreatedAt     string             `json:"created_at,omitempty"`
}

func buildOrder(order domain.Order) orderPayload {
	payload := orderPayload{
		OID:           order.OID,
		FullName:      order.Contact.FullName,
		Email:         order.Contact.Email,
		Mobile:        order.Contact.Mobile,
		Address:       order.Contact.Address,
		City:          order.Contact.City,
		State:         order.Contact.State,
		Country:       order.Contact.Country,
		VendorIDs:     append([]string{}, order.VendorIDs...),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.OrderStatus),
		SubTotal:      money(order.Amounts.SubTotal),
		Shipping:      money(order.Amounts.Shipping),
		TaxFee:        money(order.Amounts.TaxFee),
		ServiceFee:    money(order.Amounts.ServiceFee),
		Total:         money(order.Amounts.Total),
		Saved:         money(order.Saved),
		InitialTotal:  money(order.InitialTotal),
		Items:         make([]orderItemPayload, 0, len(order.Items)),
		CreatedAt:     formatTime(order.CreatedAt),
	}
	if order.BuyerID != nil {
		payload.BuyerID = *order.BuyerID
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductTitle:   item.ProductTitle,
			VendorID:       item.VendorID,
			Qty:            item.Qty,
			Color:          item.Color,
			Size:           item.Size,
			Country:        item.Country,
			amountsPayload: buildAmounts(item.Amounts),
			Saved:          money(item.Saved),
			InitialTotal:   money(item.InitialTotal),
			CouponIDs:      item.CouponIDs,
		})
	}
	return payload
}

func buildOrders(orders []domain.Order) []orderPayload {
	out := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		out = append(out, buildOrder(order))
	}
	return out
}

type productSizePayload struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type productSpecPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type productPayload struct {
	ID             string               `json:"id"`
	VendorID       string               `json:"vendor_id"`
	CategoryID     string               `json:"category_id,omitempty"`
	Title          string               `json:"title"`
	Slug           string               `json:"slug"`
	Description    string               `json:"description,omitempty"`
	Image          string               `json:"image,omitempty"`
	Price          string               `json:"price"`
	RegularPrice   string               `json:"regular_price"`
	ShippingAmount string               `json:"shipping_amount"`
	Stock          int                  `json:"stock"`
	Status         string               `json:"status"`
	Featured       bool                 `json:"featured"`
	Sizes          []productSizePayload `json:"sizes,omitempty"`
	Colors         []string             `json:"colors,omitempty"`
	Specifications []productSpecPayload `json:"specifications,omitempty"`
	Gallery        []string             `json:"gallery,omitempty"`
}

func buildProduct(p domain.Product) productPayload {
	payload := productPayload{
		ID:             p.ID,
		VendorID:       p.VendorID,
		CategoryID:     p.CategoryID,
		Title:          p.Title,
		Slug:           p.Slug,
		Description:    p.Description,
		Image:          p.Image,
		Price:          money(p.Price),
		RegularPrice:   money(p.RegularPrice),
		ShippingAmount: money(p.ShippingAmount),
		Stock:          p.Stock,
		Status:         string(p.Status),
		Featured:       p.Featured,
		Gallery:        p.Gallery,
	}
	for _, size := range p.Sizes {
		payload.Sizes = append(payload.Sizes, productSizePayload{Name: size.Name, Price: money(size.Price)})
	}
	for _, color := range p.Colors {
		payload.Colors = append(payload.Colors, color.Name)
	}
	for _, spec := range p.Specifications {
		payload.Specifications = append(payload.Specifications, productSpecPayload{Title: spec.Title, Content: spec.Content})
	}
	return payload
}

func buildProducts(products []domain.Product) []productPayload {
	out := make([]productPayload, 0, len(products))
	for _, p := range products {
		out = append(out, buildProduct(p))
	}
	return out
}

type pagePayload struct {
	Items    []productPayload `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
}

func buildProductPage(page domain.Page[domain.Product]) pagePayload {
	return pagePayload{
		Items:    buildProducts(page.Items),
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
	}
}

type vendorPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
}

func buildVendor(v domain.Vendor, private bool) vendorPayload {
	payload := vendorPayload{ID: v.ID, Name: v.Name, Slug: v.Slug, Image: v.Image, Description: v.Description}
	if private {
		payload.Email = v.Email
		payload.Mobile = v.Mobile
	}
	return payload
}

type couponPayload struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Discount  int    `json:"discount"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

func buildCoupon(c domain.Coupon) couponPayload {
	return couponPayload{
		ID:        c.ID,
		Code:      c.Code,
		Discount:  c.Discount,
		Active:    c.Active,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

type notificationPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	OrderID     string `json:"order_id,omitempty"`
	OrderItemID string `json:"order_item_id,omitempty"`
	Message     string `json:"message"`
	Seen        bool   `json:"seen"`
	CreatedAt   string `json:"created_at"`
}

func buildNotification(n domain.Notification) notificationPayload {
	return notificationPayload{
		ID:          n.ID,
		Type:        string(n.Type),
		OrderID:     n.OrderID,
		OrderItemID: n.OrderItemID,
		Message:     n.Message,
		Seen:        n.Seen,
		CreatedAt:   formatTime(n.CreatedAt),
	}
}

func buildNotifications(items []domain.Notification) []notificationPayload {
	out := make([]notificationPayload, 0, len(items))
	for _, item := range items {
		out = append(out, buildNotification(item))
	}
	return out
}

type notificationSummaryPayload struct {
	UnRead int64 `json:"un_read"`
	Read   int64 `json:"read"`
	All    int64 `json:"all"`
}

type reviewPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id,omitempty"`
	Rating    int    `json:"rating"`
	Review    string `json:"review"`
	Reply     string `json:"reply,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// buildReview renders a review. Buyer ids are only shown to the vendor.
func buildReview(r domain.Review, private bool) reviewPayload {
	payload := reviewPayload{
		ID:        r.ID,
		ProductID: r.ProductID,
		Rating:    r.Rating,
		Review:    r.Comment,
		Reply:     r.Reply,
		Active:    r.Active,
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
	}
	if private {
		payload.UserID = r.UserID
	}
	return payload
}

func buildReviews(reviews []domain.Review, private bool) []reviewPayload {
	out := make([]reviewPayload, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, buildReview(r, private))
	}
	return out
}
