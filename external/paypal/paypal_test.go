package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	sdk "github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	tokenCalls int
	tokenErr   error

	created    []sdk.PurchaseUnitRequest
	order      *sdk.Order
	captured   *sdk.CaptureOrderResponse
	captureErr error
	refundReq  sdk.RefundCaptureRequest
	refundedID string

	requested  string
	refundRead sdk.RefundResponse
}

func (f *fakeAPI) GetAccessToken(context.Context) (*sdk.TokenResponse, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &sdk.TokenResponse{Token: "tok"}, nil
}

var _ ordersAPI = (*sdk.Client)(nil)

func (f *fakeAPI) CreateOrder(_ context.Context, intent string, units []sdk.PurchaseUnitRequest, _ *sdk.PaymentSource, _ *sdk.ApplicationContext) (*sdk.Order, error) {
	f.created = units
	return f.order, nil
}

func (f *fakeAPI) GetOrder(context.Context, string) (*sdk.Order, error) {
	return f.order, nil
}

func (f *fakeAPI) CaptureOrder(context.Context, string, sdk.CaptureOrderRequest) (*sdk.CaptureOrderResponse, error) {
	return f.captured, f.captureErr
}

func (f *fakeAPI) RefundCapture(_ context.Context, captureID string, req sdk.RefundCaptureRequest) (*sdk.RefundResponse, error) {
	f.refundedID = captureID
	f.refundReq = req
	return &sdk.RefundResponse{ID: "RF1", Status: "COMPLETED"}, nil
}

func (f *fakeAPI) NewRequest(ctx context.Context, method, url string, _ interface{}) (*http.Request, error) {
	f.requested = method + " " + url
	return http.NewRequestWithContext(ctx, method, url, nil)
}

func (f *fakeAPI) SendWithAuth(_ *http.Request, v interface{}) error {
	*(v.(*sdk.RefundResponse)) = f.refundRead
	return nil
}

func configured(api ordersAPI) *Processor {
	return &Processor{
		cfg: payment.ProviderConfig{
			Mode:            payment.ModeSandbox,
			Currency:        "EUR",
			Sandbox:         payment.Credentials{ClientID: "cid", Key: "secret"},
			CallbackBaseURL: "https://shop.test/api",
		},
		api:  api,
		base: "https://api.sandbox.test",
	}
}

var order = &model.Sell{ID: 5, TotalPayableAmount: decimal.RequireFromString("49.90")}

func TestCreatePayment(t *testing.T) {
	api := &fakeAPI{order: &sdk.Order{
		ID:     "5O190127TN364715T",
		Status: "CREATED",
		Links: []sdk.Link{
			{Rel: "self", Href: "https://api.sandbox.paypal.test/v2/checkout/orders/5O1"},
			{Rel: "approve", Href: "https://www.sandbox.paypal.test/checkoutnow?token=5O1"},
		},
	}}
	p := configured(api)

	res := p.CreatePayment(context.Background(), order)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "5O190127TN364715T", res.PaymentID)
	assert.Contains(t, res.RedirectURL, "checkoutnow")
	require.Len(t, api.created, 1)
	assert.Equal(t, "49.90", api.created[0].Amount.Value)
	assert.Equal(t, "EUR", api.created[0].Amount.Currency)
	assert.Equal(t, "5", api.created[0].CustomID)

	p.CreatePayment(context.Background(), order)
	assert.Equal(t, 1, api.tokenCalls)
}

func TestCreatePaymentAuthFailure(t *testing.T) {
	p := configured(&fakeAPI{tokenErr: errors.New("401 invalid_client")})
	res := p.CreatePayment(context.Background(), order)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "paypal")
}

func TestCreatePaymentAgainstRejectingEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	p := New(payment.ProviderConfig{
		Mode:    payment.ModeSandbox,
		Sandbox: payment.Credentials{ClientID: "cid", Key: "secret", BaseURL: srv.URL},
	}, srv.Client())

	res := p.CreatePayment(context.Background(), order)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "paypal")
}

func TestNotConfigured(t *testing.T) {
	p := New(payment.ProviderConfig{Mode: payment.ModeLive}, nil)
	assert.False(t, p.IsConfigured())
	res := p.CreatePayment(context.Background(), order)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "paypal")
}

func TestCheckPaymentStatusCapturesApprovedOrder(t *testing.T) {
	api := &fakeAPI{
		order: &sdk.Order{ID: "O1", Status: "APPROVED"},
		captured: &sdk.CaptureOrderResponse{
			ID:     "O1",
			Status: "COMPLETED",
			PurchaseUnits: []sdk.CapturedPurchaseUnit{{
				Payments: &sdk.CapturedPayments{Captures: []sdk.CaptureAmount{{ID: "CAP1", Status: "COMPLETED"}}},
			}},
		},
	}
	res := configured(api).CheckPaymentStatus(context.Background(), "O1", order)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, "CAP1", res.TransactionID)
}

func TestCheckPaymentStatusCaptureFailure(t *testing.T) {
	api := &fakeAPI{
		order:      &sdk.Order{ID: "O1", Status: "APPROVED"},
		captureErr: errors.New("422 UNPROCESSABLE_ENTITY"),
	}
	res := configured(api).CheckPaymentStatus(context.Background(), "O1", order)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "paypal")
}

func TestCheckPaymentStatusMapping(t *testing.T) {
	cases := map[string]model.TransactionStatus{
		"CREATED":               model.StatusPending,
		"PAYER_ACTION_REQUIRED": model.StatusPending,
		"VOIDED":                model.StatusCancelled,
		"COMPLETED":             model.StatusCompleted,
		"SOMETHING_ELSE":        model.StatusPending,
	}
	for native, want := range cases {
		api := &fakeAPI{order: &sdk.Order{ID: "O1", Status: native}}
		res := configured(api).CheckPaymentStatus(context.Background(), "O1", order)
		require.True(t, res.Success)
		assert.Equal(t, want, res.Status, native)
	}
}

func TestHandleCallbackCaptureCompleted(t *testing.T) {
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP1",
			"status": "COMPLETED",
			"custom_id": "5",
			"amount": {"currency_code": "EUR", "value": "49.90"},
			"supplementary_data": {"related_ids": {"order_id": "O1"}}
		}
	}`), &payload))

	res := configured(nil).HandleCallback(payload)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, "O1", res.PaymentID)
	assert.Equal(t, "CAP1", res.TransactionID)
	assert.Equal(t, int64(5), res.OrderID)
	assert.False(t, res.Verified, "PayPal events are confirmed through the API")
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("49.90")))
}

func TestHandleCallbackOrderApproved(t *testing.T) {
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"resource": {
			"id": "O1",
			"status": "APPROVED",
			"purchase_units": [{"reference_id": "5", "amount": {"currency_code": "EUR", "value": "49.90"}}]
		}
	}`), &payload))

	res := configured(nil).HandleCallback(payload)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, "O1", res.PaymentID)
}

func TestHandleCallbackMissingFields(t *testing.T) {
	res := configured(nil).HandleCallback(map[string]any{"event_type": "PAYMENT.CAPTURE.COMPLETED"})
	assert.False(t, res.Success)

	res = configured(nil).HandleCallback(map[string]any{"resource": map[string]any{"status": "COMPLETED"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "paypal")
}

func TestParseRedirect(t *testing.T) {
	pid, oid := configured(nil).ParseRedirect(url.Values{"token": {"O1"}, "PayerID": {"P1"}, "order_id": {"5"}})
	assert.Equal(t, "O1", pid)
	assert.Equal(t, int64(5), oid)
}

func TestRefundPayment(t *testing.T) {
	api := &fakeAPI{order: &sdk.Order{
		ID:     "O1",
		Status: "COMPLETED",
		PurchaseUnits: []sdk.PurchaseUnit{{
			Payments: &sdk.CapturedPayments{Captures: []sdk.CaptureAmount{{ID: "CAP1"}}},
		}},
	}}
	res := configured(api).RefundPayment(context.Background(), "O1", decimal.RequireFromString("10"))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "RF1", res.RefundID)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, "CAP1", api.refundedID)
	assert.Equal(t, "10.00", api.refundReq.Amount.Value)
}

func TestRefundWithoutCapture(t *testing.T) {
	api := &fakeAPI{order: &sdk.Order{ID: "O1", Status: "CREATED"}}
	res := configured(api).RefundPayment(context.Background(), "O1", decimal.RequireFromString("10"))
	assert.False(t, res.Success)
	assert.False(t, res.ManualProcessRequired)
}

func TestCheckRefundStatus(t *testing.T) {
	api := &fakeAPI{refundRead: sdk.RefundResponse{ID: "RF1", Status: "COMPLETED"}}
	res := configured(api).CheckRefundStatus(context.Background(), "O1", "RF1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, "GET https://api.sandbox.test/v2/payments/refunds/RF1", api.requested)

	api.refundRead.Status = "PENDING"
	res = configured(api).CheckRefundStatus(context.Background(), "O1", "RF1")
	assert.Equal(t, model.StatusPending, res.Status)
}
