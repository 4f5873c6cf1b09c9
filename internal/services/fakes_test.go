package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return fmt.Sprintf("repo error nf=%t c=%t", e.notFound, e.conflict) }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errRepoNotFound    = stubRepoError{notFound: true}
	errRepoConflict    = stubRepoError{conflict: true}
	errRepoUnavailable = stubRepoError{unavailable: true}
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

var testNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeUnitOfWork struct {
	calls int
}

func (u *fakeUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	return fn(ctx)
}

// Products ---------------------------------------------------------------------

type fakeProducts struct {
	items map[string]domain.Product
	err   error
	saved []domain.Product
}

func newFakeProducts(products ...domain.Product) *fakeProducts {
	f := &fakeProducts{items: map[string]domain.Product{}}
	for _, p := range products {
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProducts) FindByID(_ context.Context, id string) (domain.Product, error) {
	if f.err != nil {
		return domain.Product{}, f.err
	}
	p, ok := f.items[id]
	if !ok {
		return domain.Product{}, errRepoNotFound
	}
	return p, nil
}

func (f *fakeProducts) FindPublishedBySlug(_ context.Context, slug string) (domain.Product, error) {
	for _, p := range f.items {
		if p.Slug == slug && p.Status == domain.ProductStatusPublished {
			return p, nil
		}
	}
	return domain.Product{}, errRepoNotFound
}

func (f *fakeProducts) ListPublished(_ context.Context, filter repositories.ProductFilter) (domain.Page[domain.Product], error) {
	var out []domain.Product
	for _, p := range f.items {
		if p.Status != domain.ProductStatusPublished {
			continue
		}
		if filter.VendorID != "" && p.VendorID != filter.VendorID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.Page[domain.Product]{Items: out, Page: filter.Pagination.Page, PageSize: filter.Pagination.PageSize, Total: int64(len(out))}, nil
}

func (f *fakeProducts) ListByVendor(_ context.Context, vendorID string, status *domain.ProductStatus) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.items {
		if p.VendorID == vendorID && (status == nil || p.Status == *status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) Save(_ context.Context, product domain.Product) (domain.Product, error) {
	f.saved = append(f.saved, product)
	f.items[product.ID] = product
	return product, nil
}

func (f *fakeProducts) ListCategories(context.Context) ([]domain.Category, error) { return nil, nil }

func (f *fakeProducts) SaveCategory(_ context.Context, c domain.Category) (domain.Category, error) {
	return c, nil
}

// Vendors and users -------------------------------------------------------------

type fakeVendors struct {
	items map[string]domain.Vendor
	err   error
}

func newFakeVendors(vendors ...domain.Vendor) *fakeVendors {
	f := &fakeVendors{items: map[string]domain.Vendor{}}
	for _, v := range vendors {
		f.items[v.ID] = v
	}
	return f
}

func (f *fakeVendors) FindByID(_ context.Context, id string) (domain.Vendor, error) {
	v, ok := f.items[id]
	if !ok {
		return domain.Vendor{}, errRepoNotFound
	}
	return v, nil
}

func (f *fakeVendors) FindBySlug(_ context.Context, slug string) (domain.Vendor, error) {
	for _, v := range f.items {
		if v.Slug == slug {
			return v, nil
		}
	}
	return domain.Vendor{}, errRepoNotFound
}

func (f *fakeVendors) FindByUserID(_ context.Context, userID string) (domain.Vendor, error) {
	for _, v := range f.items {
		if v.UserID == userID {
			return v, nil
		}
	}
	return domain.Vendor{}, errRepoNotFound
}

func (f *fakeVendors) ListByIDs(_ context.Context, ids []string) ([]domain.Vendor, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Vendor
	for _, id := range ids {
		if v, ok := f.items[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVendors) Save(_ context.Context, v domain.Vendor) (domain.Vendor, error) {
	f.items[v.ID] = v
	return v, nil
}

type fakeUsers struct {
	items map[string]domain.User
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{items: map[string]domain.User{}}
	for _, u := range users {
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (domain.User, error) {
	u, ok := f.items[id]
	if !ok {
		return domain.User{}, errRepoNotFound
	}
	return u, nil
}

func (f *fakeUsers) ListAdmins(context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.items {
		if u.IsAdmin {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) Save(_ context.Context, u domain.User) (domain.User, error) {
	f.items[u.ID] = u
	return u, nil
}

// Carts ---------------------------------------------------------------------------

type fakeCarts struct {
	mu        sync.Mutex
	lines     []domain.CartItem
	seq       int
	saveErrs  []error
	deleted   []string
	deleteErr error
}

func (f *fakeCarts) FindLine(_ context.Context, cartID, productID string) (domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.CartID == cartID && l.ProductID == productID {
			return l, nil
		}
	}
	return domain.CartItem{}, errRepoNotFound
}

func (f *fakeCarts) SaveLine(_ context.Context, item domain.CartItem) (domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		if err != nil {
			return domain.CartItem{}, err
		}
	}
	if item.ID == "" {
		f.seq++
		item.ID = fmt.Sprintf("line-%d", f.seq)
		f.lines = append(f.lines, item)
		return item, nil
	}
	for i := range f.lines {
		if f.lines[i].ID == item.ID {
			f.lines[i] = item
			return item, nil
		}
	}
	return domain.CartItem{}, errRepoNotFound
}

func (f *fakeCarts) DeleteLine(_ context.Context, cartID, itemID string, userID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.lines {
		if l.CartID != cartID || l.ID != itemID {
			continue
		}
		if userID != nil && (l.UserID == nil || *l.UserID != *userID) {
			continue
		}
		f.lines = append(f.lines[:i], f.lines[i+1:]...)
		return nil
	}
	return errRepoNotFound
}

func (f *fakeCarts) ListLines(_ context.Context, cartID string, userID *string) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CartItem
	for _, l := range f.lines {
		if l.CartID != cartID {
			continue
		}
		if userID != nil && (l.UserID == nil || *l.UserID != *userID) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeCarts) DeleteCart(_ context.Context, cartID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleted = append(f.deleted, cartID)
	kept := f.lines[:0]
	var removed int64
	for _, l := range f.lines {
		if l.CartID == cartID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	return removed, nil
}

// Orders --------------------------------------------------------------------------

type fakeOrders struct {
	mu         sync.Mutex
	byOID      map[string]domain.Order
	seq        int
	insertErrs []error
	inserted   int
	settles    int
	// beforeSettle runs before the version check to simulate concurrent writers.
	beforeSettle func()
}

func newFakeOrders(orders ...domain.Order) *fakeOrders {
	f := &fakeOrders{byOID: map[string]domain.Order{}}
	for _, o := range orders {
		f.byOID[o.OID] = cloneOrder(o)
	}
	return f
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.CouponIDs = append([]string(nil), item.CouponIDs...)
		items[i] = item
	}
	o.Items = items
	o.VendorIDs = append([]string(nil), o.VendorIDs...)
	return o
}

func (f *fakeOrders) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return domain.Order{}, err
		}
	}
	if _, exists := f.byOID[order.OID]; exists {
		return domain.Order{}, errRepoConflict
	}
	f.seq++
	if order.ID == "" {
		order.ID = fmt.Sprintf("order-%d", f.seq)
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = fmt.Sprintf("%s-item-%d", order.ID, i+1)
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].OID = order.OID
	}
	if order.Version == 0 {
		order.Version = 1
	}
	f.byOID[order.OID] = cloneOrder(order)
	f.inserted++
	return cloneOrder(order), nil
}

func (f *fakeOrders) FindByOID(_ context.Context, oid string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byOID[oid]
	if !ok {
		return domain.Order{}, errRepoNotFound
	}
	return cloneOrder(o), nil
}

func (f *fakeOrders) FindByStripeSession(_ context.Context, sessionID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byOID {
		if sessionID != "" && o.References.StripeSessionID == sessionID {
			return cloneOrder(o), nil
		}
	}
	return domain.Order{}, errRepoNotFound
}

func (f *fakeOrders) FindByPayPalOrder(_ context.Context, paypalOrderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byOID {
		if paypalOrderID != "" && o.References.PayPalOrderID == paypalOrderID {
			return cloneOrder(o), nil
		}
	}
	return domain.Order{}, errRepoNotFound
}

func (f *fakeOrders) ListByBuyer(_ context.Context, buyerID string, status *domain.PaymentStatus) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.byOID {
		if o.BuyerID != nil && *o.BuyerID == buyerID && (status == nil || o.PaymentStatus == *status) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (f *fakeOrders) ListForVendor(_ context.Context, vendorID string, filter repositories.VendorOrderFilter) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.byOID {
		items := o.ItemsForVendor(vendorID)
		if len(items) == 0 || !statusIn(o.PaymentStatus, filter.PaymentStatuses) {
			continue
		}
		o = cloneOrder(o)
		o.Items = items
		out = append(out, o)
	}
	return out, nil
}

func statusIn(status domain.PaymentStatus, allowed []domain.PaymentStatus) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if candidate == status {
			return true
		}
	}
	return false
}

func (f *fakeOrders) UpdateAmounts(_ context.Context, order domain.Order, expectedVersion int64) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byOID[order.OID]
	if !ok {
		return domain.Order{}, errRepoNotFound
	}
	if stored.Version != expectedVersion {
		return domain.Order{}, errRepoConflict
	}
	stored.Amounts = order.Amounts
	stored.Saved = order.Saved
	stored.Version++
	f.byOID[order.OID] = stored
	return cloneOrder(stored), nil
}

func (f *fakeOrders) UpdateItemAmounts(_ context.Context, item domain.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for oid, o := range f.byOID {
		for i := range o.Items {
			if o.Items[i].ID == item.ID {
				o.Items[i].Amounts = item.Amounts
				o.Items[i].Saved = item.Saved
				f.byOID[oid] = o
				return nil
			}
		}
	}
	return errRepoNotFound
}

func (f *fakeOrders) AttachCoupon(_ context.Context, itemID, couponID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for oid, o := range f.byOID {
		for i := range o.Items {
			if o.Items[i].ID != itemID {
				continue
			}
			if o.Items[i].HasCoupon(couponID) {
				return errRepoConflict
			}
			o.Items[i].CouponIDs = append(o.Items[i].CouponIDs, couponID)
			f.byOID[oid] = o
			return nil
		}
	}
	return errRepoNotFound
}

func (f *fakeOrders) SetReferences(_ context.Context, orderID string, refs domain.PaymentReferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for oid, o := range f.byOID {
		if o.ID == orderID {
			if refs.StripeSessionID != "" {
				o.References.StripeSessionID = refs.StripeSessionID
			}
			if refs.PayPalOrderID != "" {
				o.References.PayPalOrderID = refs.PayPalOrderID
			}
			if refs.MidtransOrderID != "" {
				o.References.MidtransOrderID = refs.MidtransOrderID
			}
			f.byOID[oid] = o
			return nil
		}
	}
	return errRepoNotFound
}

func (f *fakeOrders) Settle(_ context.Context, cmd repositories.SettleCommand) (domain.Order, error) {
	if f.beforeSettle != nil {
		f.beforeSettle()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for oid, o := range f.byOID {
		if o.ID != cmd.OrderID {
			continue
		}
		if o.Version != cmd.ExpectedVersion || !o.Pending() {
			return domain.Order{}, errRepoConflict
		}
		o.PaymentStatus = cmd.PaymentStatus
		o.OrderStatus = cmd.OrderStatus
		if cmd.References.StripeSessionID != "" {
			o.References.StripeSessionID = cmd.References.StripeSessionID
		}
		if cmd.References.PayPalOrderID != "" {
			o.References.PayPalOrderID = cmd.References.PayPalOrderID
		}
		if cmd.References.MidtransOrderID != "" {
			o.References.MidtransOrderID = cmd.References.MidtransOrderID
		}
		o.Version++
		f.byOID[oid] = o
		f.settles++
		return cloneOrder(o), nil
	}
	return domain.Order{}, errRepoNotFound
}

// bumpVersion simulates a coupon write that leaves the order pending.
func (f *fakeOrders) bumpVersion(oid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.byOID[oid]
	o.Version++
	f.byOID[oid] = o
}

// settleConcurrently marks the stored order as settled by another writer.
func (f *fakeOrders) settleConcurrently(oid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.byOID[oid]
	o.PaymentStatus = domain.PaymentStatusPaid
	o.OrderStatus = domain.OrderStatusProcessing
	o.Version++
	f.byOID[oid] = o
}

// Coupons, taxes, settings -------------------------------------------------------

type fakeCoupons struct {
	items map[string]domain.Coupon
}

func newFakeCoupons(coupons ...domain.Coupon) *fakeCoupons {
	f := &fakeCoupons{items: map[string]domain.Coupon{}}
	for _, c := range coupons {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeCoupons) FindActiveByCode(_ context.Context, code string) (domain.Coupon, error) {
	for _, c := range f.items {
		if c.Active && strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return domain.Coupon{}, errRepoNotFound
}

func (f *fakeCoupons) FindByID(_ context.Context, vendorID, couponID string) (domain.Coupon, error) {
	c, ok := f.items[couponID]
	if !ok || c.VendorID != vendorID {
		return domain.Coupon{}, errRepoNotFound
	}
	return c, nil
}

func (f *fakeCoupons) ListByVendor(_ context.Context, vendorID string) ([]domain.Coupon, error) {
	var out []domain.Coupon
	for _, c := range f.items {
		if c.VendorID == vendorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCoupons) Insert(_ context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	for _, c := range f.items {
		if strings.EqualFold(c.Code, coupon.Code) {
			return domain.Coupon{}, errRepoConflict
		}
	}
	f.items[coupon.ID] = coupon
	return coupon, nil
}

func (f *fakeCoupons) Update(_ context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if _, ok := f.items[coupon.ID]; !ok {
		return domain.Coupon{}, errRepoNotFound
	}
	f.items[coupon.ID] = coupon
	return coupon, nil
}

func (f *fakeCoupons) Delete(_ context.Context, vendorID, couponID string) error {
	c, ok := f.items[couponID]
	if !ok || c.VendorID != vendorID {
		return errRepoNotFound
	}
	delete(f.items, couponID)
	return nil
}

type fakeTaxes struct {
	items map[string]domain.Tax
	calls int
}

func newFakeTaxes(taxes ...domain.Tax) *fakeTaxes {
	f := &fakeTaxes{items: map[string]domain.Tax{}}
	for _, tax := range taxes {
		f.items[tax.Country] = tax
	}
	return f
}

func (f *fakeTaxes) FindByCountry(_ context.Context, country string) (domain.Tax, error) {
	f.calls++
	tax, ok := f.items[country]
	if !ok {
		return domain.Tax{}, errRepoNotFound
	}
	return tax, nil
}

func (f *fakeTaxes) List(context.Context) ([]domain.Tax, error) {
	var out []domain.Tax
	for _, tax := range f.items {
		out = append(out, tax)
	}
	return out, nil
}

func (f *fakeTaxes) Upsert(_ context.Context, tax domain.Tax) (domain.Tax, error) {
	f.items[tax.Country] = tax
	return tax, nil
}

type fakeSettingsRepo struct {
	settings *domain.SiteSettings
	gets     int
	err      error
}

func (f *fakeSettingsRepo) Get(context.Context) (domain.SiteSettings, error) {
	f.gets++
	if f.err != nil {
		return domain.SiteSettings{}, f.err
	}
	if f.settings == nil {
		return domain.SiteSettings{}, errRepoNotFound
	}
	return *f.settings, nil
}

func (f *fakeSettingsRepo) Save(_ context.Context, settings domain.SiteSettings) (domain.SiteSettings, error) {
	f.settings = &settings
	return settings, nil
}

// staticSettings serves fixed settings and tax rates to the pricing engine.
type staticSettings struct {
	settings SiteSettings
	rates    map[string]decimal.Decimal
	err      error
}

func (s staticSettings) Get(context.Context) (SiteSettings, error) {
	if s.err != nil {
		return SiteSettings{}, s.err
	}
	return s.settings, nil
}

func (s staticSettings) TaxRate(_ context.Context, country string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.rates[strings.ToUpper(country)], nil
}

// Notifications -------------------------------------------------------------------

type fakeNotifications struct {
	mu        sync.Mutex
	rows      []domain.Notification
	insertErr error
	// rejectTarget fails any batch holding a row for this target, like a dangling foreign key.
	rejectTarget *domain.NotificationTarget
	batches      int
}

func (f *fakeNotifications) InsertMany(_ context.Context, rows []domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.rejectTarget != nil {
		for _, row := range rows {
			if row.Target == *f.rejectTarget {
				return errRepoConflict
			}
		}
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeNotifications) List(_ context.Context, target domain.NotificationTarget, seen *bool) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, row := range f.rows {
		if row.Target == target && (seen == nil || row.Seen == *seen) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeNotifications) Summary(_ context.Context, target domain.NotificationTarget) (domain.NotificationSummary, error) {
	var summary domain.NotificationSummary
	for _, row := range f.rows {
		if row.Target != target {
			continue
		}
		summary.All++
		if row.Seen {
			summary.Read++
		} else {
			summary.Unread++
		}
	}
	return summary, nil
}

func (f *fakeNotifications) MarkSeen(_ context.Context, target domain.NotificationTarget, id string) (domain.Notification, error) {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].Target == target {
			f.rows[i].Seen = true
			return f.rows[i], nil
		}
	}
	return domain.Notification{}, errRepoNotFound
}

func (f *fakeNotifications) byTarget(kind domain.TargetKind) []domain.Notification {
	var out []domain.Notification
	for _, row := range f.rows {
		if row.Target.Kind() == kind {
			out = append(out, row)
		}
	}
	return out
}

// Follow-up collaborators --------------------------------------------------------

type recordingNotifier struct {
	mu      sync.Mutex
	created []string
	paid    []string
}

func (r *recordingNotifier) NotifyOrderCreated(_ context.Context, order Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, order.OID)
}

func (r *recordingNotifier) NotifyOrderPaid(_ context.Context, order Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, order.OID)
}

type recordingPublisher struct {
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

type recordingMetrics struct {
	settlements []string
	emails      []string
}

func (m *recordingMetrics) RecordSettlement(provider, outcome string) {
	m.settlements = append(m.settlements, provider+":"+outcome)
}

func (m *recordingMetrics) RecordEmail(audience, outcome string) {
	m.emails = append(m.emails, audience+":"+outcome)
}

// Reviews ------------------------------------------------------------------------

type fakeReviews struct {
	items    map[string]domain.Review
	products *fakeProducts
	err      error
}

func newFakeReviews(products *fakeProducts, reviews ...domain.Review) *fakeReviews {
	f := &fakeReviews{items: map[string]domain.Review{}, products: products}
	for _, r := range reviews {
		f.items[r.ID] = r
	}
	return f
}

func (f *fakeReviews) withVendor(r domain.Review) domain.Review {
	if p, ok := f.products.items[r.ProductID]; ok {
		r.VendorID = p.VendorID
	}
	return r
}

func (f *fakeReviews) Insert(_ context.Context, r domain.Review) (domain.Review, error) {
	if f.err != nil {
		return domain.Review{}, f.err
	}
	if _, exists := f.items[r.ID]; exists {
		return domain.Review{}, errRepoConflict
	}
	f.items[r.ID] = r
	return f.withVendor(r), nil
}

func (f *fakeReviews) filter(keep func(domain.Review) bool) ([]domain.Review, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Review
	for _, r := range f.items {
		r = f.withVendor(r)
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeReviews) ListByProduct(_ context.Context, productID string, activeOnly bool) ([]domain.Review, error) {
	return f.filter(func(r domain.Review) bool {
		return r.ProductID == productID && (!activeOnly || r.Active)
	})
}

func (f *fakeReviews) ListForVendor(_ context.Context, vendorID string) ([]domain.Review, error) {
	return f.filter(func(r domain.Review) bool { return r.VendorID == vendorID })
}

func (f *fakeReviews) FindForVendor(_ context.Context, vendorID, reviewID string) (domain.Review, error) {
	if f.err != nil {
		return domain.Review{}, f.err
	}
	r, ok := f.items[reviewID]
	if !ok {
		return domain.Review{}, errRepoNotFound
	}
	r = f.withVendor(r)
	if r.VendorID != vendorID {
		return domain.Review{}, errRepoNotFound
	}
	return r, nil
}

func (f *fakeReviews) UpdateModeration(ctx context.Context, r domain.Review) (domain.Review, error) {
	current, err := f.FindForVendor(ctx, r.VendorID, r.ID)
	if err != nil {
		return domain.Review{}, err
	}
	current.Reply = r.Reply
	current.Active = r.Active
	current.UpdatedAt = r.UpdatedAt
	f.items[r.ID] = current
	return current, nil
}

var errBoom = errors.New("boom")
