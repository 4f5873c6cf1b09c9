package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/upfront-market/api/internal/domain"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amounts(sub, ship, tax, fee string) domain.LineAmounts {
	return domain.LineAmounts{
		SubTotal:   money(sub),
		Shipping:   money(ship),
		TaxFee:     money(tax),
		ServiceFee: money(fee),
	}.Recompute()
}

func sampleOrder() domain.Order {
	a := domain.OrderItem{ID: "item-a", VendorID: "vendor-a", ProductTitle: "Ceramic Mug", Qty: 2, Amounts: amounts("20.00", "2.00", "0.10", "1.00")}
	b := domain.OrderItem{ID: "item-b", VendorID: "vendor-b", ProductTitle: "Linen Shirt", Size: "XL", Qty: 1, Amounts: amounts("18.00", "1.00", "0.00", "2.00")}
	order := domain.Order{
		ID:            "order-1",
		OID:           "20240501-ABC123",
		Contact:       domain.OrderContact{FullName: "Ada <script>alert(1)</script>Lovelace", Email: "ada@example.com", Address: "1 Main St", City: "London", Country: "GB"},
		VendorIDs:     []string{"vendor-a", "vendor-b"},
		PaymentMethod: domain.PaymentMethodCard,
		PaymentStatus: domain.PaymentStatusPaid,
		Items:         []domain.OrderItem{a, b},
	}
	order.Amounts = a.Amounts.Add(b.Amounts)
	return order
}

func TestRendererCustomerOrderConfirmation(t *testing.T) {
	r, err := NewRenderer("$")
	require.NoError(t, err)

	msg, err := r.CustomerOrderConfirmation(sampleOrder())
	require.NoError(t, err)

	assert.Equal(t, SubjectOrderPaid, msg.Subject)
	require.Len(t, msg.To, 1)
	assert.Equal(t, "ada@example.com", msg.To[0].Email)
	assert.Contains(t, msg.HTML, "20240501-ABC123")
	assert.Contains(t, msg.HTML, "Ceramic Mug")
	assert.Contains(t, msg.HTML, "Linen Shirt (XL)")
	assert.Contains(t, msg.HTML, "$44.10")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.NotContains(t, msg.HTML, "You saved")
}

func TestRendererVendorSaleOnlyListsVendorItems(t *testing.T) {
	r, err := NewRenderer("Rp")
	require.NoError(t, err)

	msg, err := r.VendorSale(sampleOrder(), domain.Vendor{ID: "vendor-a", Name: "Mug & Co"}, "shop@example.com")
	require.NoError(t, err)

	assert.Equal(t, SubjectVendorSale, msg.Subject)
	assert.Contains(t, msg.HTML, "Ceramic Mug")
	assert.NotContains(t, msg.HTML, "Linen Shirt")
	assert.Contains(t, msg.HTML, "Rp22.00")
	assert.Contains(t, msg.HTML, "Mug &amp; Co")
	assert.NotContains(t, msg.HTML, "&amp;amp;")
}

func TestRendererWithSymbol(t *testing.T) {
	r, err := NewRenderer("$")
	require.NoError(t, err)

	euro := r.WithSymbol("€")
	msg, err := euro.AdminOrder(sampleOrder(), SubjectAdminOrder, "ops@example.com")
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "€44.10")
	assert.Same(t, r, r.WithSymbol("$"))
}

func TestVendorTotals(t *testing.T) {
	order := sampleOrder()
	totals := VendorTotals(order.ItemsForVendor("vendor-b"))
	assert.True(t, totals.SubTotal.Equal(money("18.00")))
	assert.True(t, totals.Shipping.Equal(money("1.00")))
}

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestFallbackUsesSecondaryOnPrimaryFailure(t *testing.T) {
	primary := &recordingMailer{err: errors.New("api down")}
	secondary := &recordingMailer{}
	var observed error
	f := Fallback{Primary: primary, Secondary: secondary, OnPrimaryError: func(_ context.Context, err error) { observed = err }}

	err := f.Send(context.Background(), Message{Subject: "hi"})
	require.NoError(t, err)
	assert.Len(t, primary.sent, 1)
	assert.Len(t, secondary.sent, 1)
	assert.EqualError(t, observed, "api down")
}

func TestFallbackReportsBothFailures(t *testing.T) {
	f := Fallback{Primary: &recordingMailer{err: errors.New("api down")}, Secondary: &recordingMailer{err: errors.New("relay refused")}}
	err := f.Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
	assert.Contains(t, err.Error(), "relay refused")
}

func TestFallbackSkipsSecondaryWithoutRecipients(t *testing.T) {
	secondary := &recordingMailer{}
	f := Fallback{Primary: &recordingMailer{err: ErrNoRecipients}, Secondary: secondary}
	assert.ErrorIs(t, f.Send(context.Background(), Message{}), ErrNoRecipients)
	assert.Empty(t, secondary.sent)
}

func TestFallbackWithoutMailers(t *testing.T) {
	assert.ErrorIs(t, Fallback{}.Send(context.Background(), Message{}), ErrNotConfigured)
}

type stubMailerSendAPI struct {
	last *mailersend.Message
	err  error
}

func (s *stubMailerSendAPI) Send(_ context.Context, message *mailersend.Message) (*mailersend.Response, error) {
	s.last = message
	return &mailersend.Response{}, s.err
}

func TestMailerSendBuildsMessage(t *testing.T) {
	api := &stubMailerSendAPI{}
	m := &MailerSend{email: api}

	err := m.Send(context.Background(), Message{
		From:    Address{Name: "Upfront", Email: "no-reply@upfront.test"},
		To:      []Address{{Name: "Ada", Email: "ada@example.com"}, {Name: "Nobody", Email: "not-an-address"}},
		Subject: SubjectOrderPaid,
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, api.last)
	require.Len(t, api.last.Recipients, 1)
	assert.Equal(t, "ada@example.com", api.last.Recipients[0].Email)
	assert.Equal(t, SubjectOrderPaid, api.last.Subject)
}

func TestMailerSendRejectsMissingSender(t *testing.T) {
	m := &MailerSend{email: &stubMailerSendAPI{}}
	err := m.Send(context.Background(), Message{To: []Address{{Email: "ada@example.com"}}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMailerSendWrapsAPIError(t *testing.T) {
	m := &MailerSend{email: &stubMailerSendAPI{err: errors.New("422")}}
	err := m.Send(context.Background(), Message{From: Address{Email: "a@b.test"}, To: []Address{{Email: "ada@example.com"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailersend")
}

func TestNewMailerSendRequiresKey(t *testing.T) {
	_, err := NewMailerSend(" ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPCompose(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "localhost", Clock: func() time.Time { return time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC) }})
	require.NoError(t, err)
	assert.Equal(t, "localhost:25", s.addr)

	raw, err := s.compose(Message{
		From:    Address{Name: "Upfront", Email: "no-reply@upfront.test"},
		To:      []Address{{Name: "Ada", Email: "ada@example.com"}},
		Subject: "New sale!",
		HTML:    "<p>sale</p>",
		Text:    "sale",
	})
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.HasPrefix(body, "From: \"Upfront\" <no-reply@upfront.test>\r\n"))
	assert.Contains(t, body, "To: \"Ada\" <ada@example.com>")
	assert.Contains(t, body, "Date: Wed, 01 May 2024 09:00:00 +0000")
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "text/plain; charset=utf-8")
	assert.Contains(t, body, "<p>sale</p>")
}

func TestSMTPRequiresHost(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPSendFailsFastOnCancelledContext(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Send(ctx, Message{From: Address{Email: "a@b.test"}, To: []Address{{Email: "ada@example.com"}}})
	assert.Error(t, err)
}
