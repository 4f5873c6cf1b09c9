package sqlstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// OrderRepository persists orders together with their item snapshots, vendor set and coupon links.
type OrderRepository struct {
	provider *database.Provider
	now      func() time.Time
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a SQL backed order repository.
func NewOrderRepository(provider *database.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires database provider")
	}
	return &OrderRepository{provider: provider, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *OrderRepository) preload(db *gorm.DB, vendorID string) *gorm.DB {
	items := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Order("created_at").Order("id")
		if vendorID != "" {
			tx = tx.Where("vendor_id = ?", vendorID)
		}
		return tx
	}
	return db.Preload("Items", items).Preload("Items.Coupons").Preload("Vendors")
}

// Insert stores the order, its items and vendor set. IDs are generated when missing.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	row := orderFromDomain(order)
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}
	if row.Version == 0 {
		row.Version = 1
	}
	for i := range row.Items {
		if row.Items[i].ID == "" {
			row.Items[i].ID = ulid.Make().String()
		}
		row.Items[i].OrderID = row.ID
		row.Items[i].OID = row.OID
		row.Items[i].Coupons = nil
	}
	for i := range row.Vendors {
		row.Vendors[i].OrderID = row.ID
	}

	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		return r.provider.DB(ctx).Create(&row).Error
	})
	if err != nil {
		return domain.Order{}, database.WrapError("orders.insert", err)
	}
	return row.toDomain(), nil
}

// FindByOID loads the order with every item.
func (r *OrderRepository) FindByOID(ctx context.Context, oid string) (domain.Order, error) {
	var row orderRow
	if err := r.preload(r.provider.DB(ctx), "").Where("oid = ?", strings.TrimSpace(oid)).Take(&row).Error; err != nil {
		return domain.Order{}, database.WrapError("orders.find", err)
	}
	return row.toDomain(), nil
}

// FindByStripeSession loads the order holding the checkout session id.
func (r *OrderRepository) FindByStripeSession(ctx context.Context, sessionID string) (domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Order{}, database.NotFound("orders.find_by_session")
	}
	var row orderRow
	if err := r.preload(r.provider.DB(ctx), "").Where("stripe_session_id = ?", sessionID).Take(&row).Error; err != nil {
		return domain.Order{}, database.WrapError("orders.find_by_session", err)
	}
	return row.toDomain(), nil
}

// FindByPayPalOrder loads the order settled by the PayPal order id.
func (r *OrderRepository) FindByPayPalOrder(ctx context.Context, paypalOrderID string) (domain.Order, error) {
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return domain.Order{}, database.NotFound("orders.find_by_paypal")
	}
	var row orderRow
	if err := r.preload(r.provider.DB(ctx), "").Where("paypal_order_id = ?", paypalOrderID).Take(&row).Error; err != nil {
		return domain.Order{}, database.WrapError("orders.find_by_paypal", err)
	}
	return row.toDomain(), nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string, status *domain.PaymentStatus) ([]domain.Order, error) {
	query := r.preload(r.provider.DB(ctx), "").Where("buyer_id = ?", strings.TrimSpace(buyerID))
	if status != nil {
		query = query.Where("payment_status = ?", string(*status))
	}
	var rows []orderRow
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, database.WrapError("orders.list_by_buyer", err)
	}
	return ordersToDomain(rows), nil
}

// ListForVendor returns orders that contain the vendor's items, newest first.
func (r *OrderRepository) ListForVendor(ctx context.Context, vendorID string, filter repositories.VendorOrderFilter) ([]domain.Order, error) {
	vendorID = strings.TrimSpace(vendorID)
	query := r.preload(r.provider.DB(ctx), vendorID).
		Where("id IN (?)", r.provider.DB(ctx).Model(&orderVendorRow{}).Select("order_id").Where("vendor_id = ?", vendorID))
	if len(filter.PaymentStatuses) > 0 {
		statuses := make([]string, 0, len(filter.PaymentStatuses))
		for _, s := range filter.PaymentStatuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("payment_status IN ?", statuses)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", filter.Since.UTC())
	}
	var rows []orderRow
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, database.WrapError("orders.list_for_vendor", err)
	}
	return ordersToDomain(rows), nil
}

// UpdateAmounts writes the order level totals when the stored version still matches.
func (r *OrderRepository) UpdateAmounts(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error) {
	res := r.provider.DB(ctx).Model(&orderRow{}).
		Where("id = ? AND version = ?", order.ID, expectedVersion).
		Updates(map[string]any{
			"sub_total":       order.Amounts.SubTotal,
			"shipping_amount": order.Amounts.Shipping,
			"tax_fee":         order.Amounts.TaxFee,
			"service_fee":     order.Amounts.ServiceFee,
			"total":           order.Amounts.Total,
			"saved":           order.Saved,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      r.now(),
		})
	if res.Error != nil {
		return domain.Order{}, database.WrapError("orders.update_amounts", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Order{}, database.Conflict("orders.update_amounts", "order version changed")
	}
	order.Version = expectedVersion + 1
	return order, nil
}

// UpdateItemAmounts writes the monetary fields of one order item.
func (r *OrderRepository) UpdateItemAmounts(ctx context.Context, item domain.OrderItem) error {
	res := r.provider.DB(ctx).Model(&orderItemRow{}).Where("id = ?", item.ID).
		Updates(map[string]any{
			"sub_total":       item.Amounts.SubTotal,
			"shipping_amount": item.Amounts.Shipping,
			"tax_fee":         item.Amounts.TaxFee,
			"service_fee":     item.Amounts.ServiceFee,
			"total":           item.Amounts.Total,
			"saved":           item.Saved,
		})
	return database.WrapError("orders.update_item_amounts", res.Error)
}

// AttachCoupon records that the coupon discounted the item. A repeated pair is a conflict.
func (r *OrderRepository) AttachCoupon(ctx context.Context, itemID, couponID string) error {
	row := orderItemCouponRow{OrderItemID: strings.TrimSpace(itemID), CouponID: strings.TrimSpace(couponID), CreatedAt: r.now()}
	if err := r.provider.DB(ctx).Create(&row).Error; err != nil {
		return database.WrapError("orders.attach_coupon", err)
	}
	return nil
}

// SetReferences stores the non-empty gateway references on the order.
func (r *OrderRepository) SetReferences(ctx context.Context, orderID string, refs domain.PaymentReferences) error {
	updates := referenceUpdates(refs)
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = r.now()
	res := r.provider.DB(ctx).Model(&orderRow{}).Where("id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return database.WrapError("orders.set_references", res.Error)
	}
	if res.RowsAffected == 0 {
		return database.NotFound("orders.set_references")
	}
	return nil
}

// Settle moves a pending order to its settled statuses. The update only matches while the row
// still carries expectedVersion and both statuses are pending.
func (r *OrderRepository) Settle(ctx context.Context, cmd repositories.SettleCommand) (domain.Order, error) {
	settledAt := cmd.SettledAt
	if settledAt.IsZero() {
		settledAt = r.now()
	}
	updates := referenceUpdates(cmd.References)
	updates["payment_status"] = string(cmd.PaymentStatus)
	updates["order_status"] = string(cmd.OrderStatus)
	updates["settled_at"] = settledAt
	updates["updated_at"] = settledAt
	updates["version"] = gorm.Expr("version + 1")

	db := r.provider.DB(ctx)
	res := db.Model(&orderRow{}).
		Where("id = ? AND version = ? AND payment_status = ? AND order_status = ?",
			cmd.OrderID, cmd.ExpectedVersion, string(domain.PaymentStatusPending), string(domain.OrderStatusPending)).
		Updates(updates)
	if res.Error != nil {
		return domain.Order{}, database.WrapError("orders.settle", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Order{}, database.Conflict("orders.settle", "order already settled or modified")
	}

	var row orderRow
	if err := r.preload(db, "").Where("id = ?", cmd.OrderID).Take(&row).Error; err != nil {
		return domain.Order{}, database.WrapError("orders.settle", err)
	}
	return row.toDomain(), nil
}

func referenceUpdates(refs domain.PaymentReferences) map[string]any {
	updates := map[string]any{}
	if v := strings.TrimSpace(refs.StripeSessionID); v != "" {
		updates["stripe_session_id"] = v
	}
	if v := strings.TrimSpace(refs.PayPalOrderID); v != "" {
		updates["paypal_order_id"] = v
	}
	if v := strings.TrimSpace(refs.MidtransOrderID); v != "" {
		updates["midtrans_order_id"] = v
	}
	return updates
}

func orderFromDomain(o domain.Order) orderRow {
	row := orderRow{
		ID:              strings.TrimSpace(o.ID),
		OID:             strings.TrimSpace(o.OID),
		CartID:          strings.TrimSpace(o.CartID),
		BuyerID:         optionalString(o.BuyerID),
		FullName:        strings.TrimSpace(o.Contact.FullName),
		Email:           strings.TrimSpace(o.Contact.Email),
		Mobile:          strings.TrimSpace(o.Contact.Mobile),
		Address:         strings.TrimSpace(o.Contact.Address),
		City:            strings.TrimSpace(o.Contact.City),
		State:           strings.TrimSpace(o.Contact.State),
		Country:         strings.TrimSpace(o.Contact.Country),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		OrderStatus:     string(o.OrderStatus),
		SubTotal:        o.Amounts.SubTotal,
		ShippingAmount:  o.Amounts.Shipping,
		TaxFee:          o.Amounts.TaxFee,
		ServiceFee:      o.Amounts.ServiceFee,
		Total:           o.Amounts.Total,
		Saved:           o.Saved,
		InitialTotal:    o.InitialTotal,
		StripeSessionID: strings.TrimSpace(o.References.StripeSessionID),
		PayPalOrderID:   nonEmpty(o.References.PayPalOrderID),
		MidtransOrderID: strings.TrimSpace(o.References.MidtransOrderID),
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
	}
	seen := make(map[string]struct{}, len(o.VendorIDs))
	for _, id := range o.VendorIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		row.Vendors = append(row.Vendors, orderVendorRow{VendorID: id})
	}
	for _, item := range o.Items {
		row.Items = append(row.Items, orderItemRow{
			ID:             strings.TrimSpace(item.ID),
			ProductID:      item.ProductID,
			ProductTitle:   truncate(item.ProductTitle, 90),
			VendorID:       item.VendorID,
			Qty:            item.Qty,
			Color:          item.Color,
			Size:           item.Size,
			Country:        item.Country,
			Price:          item.Amounts.Price,
			SubTotal:       item.Amounts.SubTotal,
			ShippingAmount: item.Amounts.Shipping,
			TaxFee:         item.Amounts.TaxFee,
			ServiceFee:     item.Amounts.ServiceFee,
			Total:          item.Amounts.Total,
			Saved:          item.Saved,
			InitialTotal:   item.InitialTotal,
			CreatedAt:      item.CreatedAt,
		})
	}
	return row
}

func (row orderRow) toDomain() domain.Order {
	o := domain.Order{
		ID:      row.ID,
		OID:     row.OID,
		CartID:  row.CartID,
		BuyerID: row.BuyerID,
		Contact: domain.OrderContact{
			FullName: row.FullName,
			Email:    row.Email,
			Mobile:   row.Mobile,
			Address:  row.Address,
			City:     row.City,
			State:    row.State,
			Country:  row.Country,
		},
		PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(row.PaymentStatus),
		OrderStatus:   domain.OrderStatus(row.OrderStatus),
		Amounts: domain.LineAmounts{
			SubTotal:   row.SubTotal,
			Shipping:   row.ShippingAmount,
			TaxFee:     row.TaxFee,
			ServiceFee: row.ServiceFee,
			Total:      row.Total,
		},
		Saved:        row.Saved,
		InitialTotal: row.InitialTotal,
		References: domain.PaymentReferences{
			StripeSessionID: row.StripeSessionID,
			PayPalOrderID:   derefString(row.PayPalOrderID),
			MidtransOrderID: row.MidtransOrderID,
		},
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for _, v := range row.Vendors {
		o.VendorIDs = append(o.VendorIDs, v.VendorID)
	}
	sort.Strings(o.VendorIDs)
	for _, item := range row.Items {
		o.Items = append(o.Items, item.toDomain())
	}
	return o
}

func (row orderItemRow) toDomain() domain.OrderItem {
	item := domain.OrderItem{
		ID:           row.ID,
		OrderID:      row.OrderID,
		OID:          row.OID,
		ProductID:    row.ProductID,
		ProductTitle: row.ProductTitle,
		VendorID:     row.VendorID,
		Qty:          row.Qty,
		Color:        row.Color,
		Size:         row.Size,
		Country:      row.Country,
		Amounts: domain.LineAmounts{
			Price:      row.Price,
			SubTotal:   row.SubTotal,
			Shipping:   row.ShippingAmount,
			TaxFee:     row.TaxFee,
			ServiceFee: row.ServiceFee,
			Total:      row.Total,
		},
		Saved:        row.Saved,
		InitialTotal: row.InitialTotal,
		CreatedAt:    row.CreatedAt,
	}
	for _, c := range row.Coupons {
		item.CouponIDs = append(item.CouponIDs, c.CouponID)
	}
	sort.Strings(item.CouponIDs)
	return item
}

func ordersToDomain(rows []orderRow) []domain.Order {
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
