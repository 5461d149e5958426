package biz

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/meikanc/mpesa-backend/internal/conf"
	"github.com/meikanc/mpesa-backend/internal/constants"
	"github.com/meikanc/mpesa-backend/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsecase(t *testing.T) (*CheckoutUsecase, *memStore, *stubGateway, *mapCache) {
	t.Helper()
	store := newMemStore()
	gw := &stubGateway{}
	cache := newMapCache()
	uc := NewCheckoutUsecase(store, store, store, cache, &memTx{store: store}, gw, nil, &conf.Bootstrap{}, log.NewStdLogger(io.Discard))
	return uc, store, gw, cache
}

func cashInput() *PlaceOrderInput {
	return &PlaceOrderInput{
		Method: "cash",
		Amount: "1000",
		Items:  []*CartItemInput{{ProductID: 1, Quantity: 2, Price: "500"}},
	}
}

func mpesaInput() *PlaceOrderInput {
	in := cashInput()
	in.Method = "mpesa"
	in.Phone = "0712345678"
	return in
}

func TestPlaceOrderCash(t *testing.T) {
	uc, store, _, _ := newTestUsecase(t)

	res, err := uc.PlaceOrder(context.Background(), cashInput())
	require.NoError(t, err)
	assert.Equal(t, Cents(100000), res.Total)
	assert.NotZero(t, res.OrderID)
	assert.True(t, strings.HasPrefix(res.TransactionID, "TXN"))
	assert.Empty(t, res.CheckoutRequestID)

	order := store.orders[res.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, constants.OrderStatusPending, order.Status)
	assert.Equal(t, constants.OrderPaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, Cents(100000), order.TotalAmount)

	items := store.items[res.OrderID]
	require.Len(t, items, 1)
	assert.Equal(t, Cents(100000), items[0].Subtotal)
	assert.Equal(t, 2, items[0].Quantity)

	payment := store.payments[res.OrderID]
	require.NotNil(t, payment)
	assert.Equal(t, constants.PaymentStatusPending, payment.Status)
	assert.Equal(t, constants.MethodCash, payment.Method)
	assert.Equal(t, order.TotalAmount, payment.Amount)

	assert.Empty(t, store.stks, "cash orders must not create a pending provider transaction")
}

func TestPlaceOrderMpesa(t *testing.T) {
	uc, store, _, _ := newTestUsecase(t)

	res, err := uc.PlaceOrder(context.Background(), mpesaInput())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.CheckoutRequestID, "ws_CO_"))

	order := store.orders[res.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, constants.OrderStatusProcessing, order.Status)
	assert.Equal(t, constants.OrderPaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, res.CheckoutRequestID, order.CheckoutRequestID)

	payment := store.payments[res.OrderID]
	require.NotNil(t, payment)
	assert.Equal(t, constants.PaymentStatusInitiated, payment.Status)
	assert.Equal(t, "254712345678", payment.PhoneNumber)

	stk, err := store.GetByOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stk)
	assert.Equal(t, constants.StkStatusInitiated, stk.Status)
	assert.Equal(t, res.CheckoutRequestID, stk.CheckoutRequestID)
	assert.Equal(t, Cents(100000), stk.Amount)
	assert.Equal(t, "254712345678", stk.PhoneNumber)
}

func TestPlaceOrderTokensUniquePerOrder(t *testing.T) {
	uc, _, _, _ := newTestUsecase(t)

	first, err := uc.PlaceOrder(context.Background(), mpesaInput())
	require.NoError(t, err)
	second, err := uc.PlaceOrder(context.Background(), mpesaInput())
	require.NoError(t, err)

	assert.NotEqual(t, first.CheckoutRequestID, second.CheckoutRequestID)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)
}

func TestPlaceOrderValidation(t *testing.T) {
	uc, store, _, _ := newTestUsecase(t)

	tests := []struct {
		name   string
		mutate func(in *PlaceOrderInput)
	}{
		{name: "missing method", mutate: func(in *PlaceOrderInput) { in.Method = "" }},
		{name: "unsupported method", mutate: func(in *PlaceOrderInput) { in.Method = "paypal" }},
		{name: "empty cart", mutate: func(in *PlaceOrderInput) { in.Items = nil }},
		{name: "zero quantity", mutate: func(in *PlaceOrderInput) { in.Items[0].Quantity = 0 }},
		{name: "negative price", mutate: func(in *PlaceOrderInput) { in.Items[0].Price = "-5" }},
		{name: "bad amount", mutate: func(in *PlaceOrderInput) { in.Amount = "lots" }},
		{name: "zero amount", mutate: func(in *PlaceOrderInput) { in.Amount = "0" }},
		{name: "amount cart mismatch", mutate: func(in *PlaceOrderInput) { in.Amount = "999" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cashInput()
			tt.mutate(in)
			_, err := uc.PlaceOrder(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), "expected a validation error, got %v", err)
		})
	}

	t.Run("bad mpesa phone", func(t *testing.T) {
		in := mpesaInput()
		in.Phone = "12345"
		_, err := uc.PlaceOrder(context.Background(), in)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	assert.Empty(t, store.orders, "no validation failure may leave rows behind")
}

func TestPlaceOrderAtomicRollback(t *testing.T) {
	uc, store, _, _ := newTestUsecase(t)
	store.failCreatePayment = true

	_, err := uc.PlaceOrder(context.Background(), cashInput())
	require.Error(t, err)
	assert.Equal(t, errors.ReasonPersistenceFailed, reasonOf(err))

	assert.Empty(t, store.orders, "failed checkout must leave no order rows")
	assert.Empty(t, store.items, "failed checkout must leave no item rows")
	assert.Empty(t, store.payments, "failed checkout must leave no payment rows")
}

func TestPlaceOrderAtomicRollbackOnItems(t *testing.T) {
	uc, store, _, _ := newTestUsecase(t)
	store.failAddItems = true

	_, err := uc.PlaceOrder(context.Background(), mpesaInput())
	require.Error(t, err)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.stks)
}

func TestInitiateStkPush(t *testing.T) {
	uc, store, gw, _ := newTestUsecase(t)

	res, err := uc.PlaceOrder(context.Background(), mpesaInput())
	require.NoError(t, err)

	ack, err := uc.InitiateStkPush(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "0", ack.ResponseCode)

	require.Len(t, gw.pushes, 1)
	assert.Equal(t, Cents(100000), gw.pushes[0].Amount)
	assert.Equal(t, "254712345678", gw.pushes[0].PhoneNumber)
	assert.Contains(t, gw.pushes[0].AccountReference, "ORDER")

	// The push writes nothing locally.
	stk, err := store.GetByOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, constants.StkStatusInitiated, stk.Status)
	assert.Equal(t, constants.OrderStatusProcessing, store.orders[res.OrderID].Status)
}

func TestInitiateStkPushGatewayFailureLeavesStateUntouched(t *testing.T) {
	uc, store, gw, _ := newTestUsecase(t)

	res, err := uc.PlaceOrder(context.Background(), mpesaInput())
	require.NoError(t, err)

	gw.pushErr = errors.Gateway(`{"errorMessage":"System busy"}`, nil)
	_, err = uc.InitiateStkPush(context.Background(), res.OrderID)
	require.Error(t, err)
	assert.Equal(t, errors.ReasonGatewayFailed, reasonOf(err))

	stk, err := store.GetByOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, constants.StkStatusInitiated, stk.Status, "a failed push must leave the transaction initiated")
	assert.Equal(t, constants.OrderStatusProcessing, store.orders[res.OrderID].Status)
}

func TestInitiateStkPushAuthFailure(t *testing.T) {
	uc, _, gw, _ := newTestUsecase(t)

	res, err := uc.PlaceOrder(context.Background(), mpesaInput())
	require.NoError(t, err)

	gw.authErr = errors.GatewayAuth(nil)
	_, err = uc.InitiateStkPush(context.Background(), res.OrderID)
	require.Error(t, err)
	assert.Equal(t, errors.ReasonAuthFailed, reasonOf(err))
	assert.Empty(t, gw.pushes, "no push may be attempted without a token")
}

func TestInitiateStkPushUnknownOrder(t *testing.T) {
	uc, _, _, _ := newTestUsecase(t)

	_, err := uc.InitiateStkPush(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.IsOrderNotFound(err))
}

func TestGetOrderStatus(t *testing.T) {
	uc, store, _, cache := newTestUsecase(t)

	res, err := uc.PlaceOrder(context.Background(), cashInput())
	require.NoError(t, err)

	view, err := uc.GetOrderStatus(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, constants.OrderStatusPending, view.Status)
	assert.Equal(t, constants.MethodCash, view.Method)
	assert.Equal(t, res.TransactionID, view.TransactionID)

	// Second read is served from cache: a direct store change stays hidden.
	store.orders[res.OrderID].Status = constants.OrderStatusCompleted
	view, err = uc.GetOrderStatus(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, constants.OrderStatusPending, view.Status)

	require.NotNil(t, cache.views[res.OrderID])
}

func TestGetOrderStatusUnknownOrderCachesMiss(t *testing.T) {
	uc, _, _, cache := newTestUsecase(t)

	_, err := uc.GetOrderStatus(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.IsOrderNotFound(err))
	assert.True(t, cache.misses[99], "the miss itself must be cached")

	_, err = uc.GetOrderStatus(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.IsOrderNotFound(err))
}

func reasonOf(err error) string {
	type reasoner interface{ GetReason() string }
	if r, ok := err.(reasoner); ok {
		return r.GetReason()
	}
	return ""
}
