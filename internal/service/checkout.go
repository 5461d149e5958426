package service

import (
	"context"
	"encoding/json"

	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewCheckoutService)

// CheckoutService is the transport-facing surface over the checkout usecase.
type CheckoutService struct {
	uc  *biz.CheckoutUsecase
	log *log.Helper
}

func NewCheckoutService(uc *biz.CheckoutUsecase, logger log.Logger) *CheckoutService {
	return &CheckoutService{uc: uc, log: log.NewHelper(logger)}
}

type CartItemRequest struct {
	ID       uint64      `json:"id"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
}

type PlaceOrderRequest struct {
	Method string            `json:"method"`
	Amount json.Number       `json:"amount"`
	Phone  string            `json:"phone,omitempty"`
	Cart   []CartItemRequest `json:"cart"`
}

type PlaceOrderReply struct {
	Success           bool   `json:"success"`
	OrderID           uint64 `json:"order_id,omitempty"`
	TransactionID     string `json:"transaction_id,omitempty"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	Message           string `json:"message,omitempty"`
}

func (s *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderReply, error) {
	in := &biz.PlaceOrderInput{
		Method: req.Method,
		Amount: req.Amount.String(),
		Phone:  req.Phone,
		Items:  make([]*biz.CartItemInput, len(req.Cart)),
	}
	for i, item := range req.Cart {
		in.Items[i] = &biz.CartItemInput{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			Price:     item.Price.String(),
		}
	}

	res, err := s.uc.PlaceOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	return &PlaceOrderReply{
		Success:           true,
		OrderID:           res.OrderID,
		TransactionID:     res.TransactionID,
		CheckoutRequestID: res.CheckoutRequestID,
		Message:           "order created successfully",
	}, nil
}

type StkPushReply struct {
	Success             bool   `json:"success"`
	MerchantRequestID   string `json:"merchant_request_id,omitempty"`
	CheckoutRequestID   string `json:"checkout_request_id,omitempty"`
	ResponseCode        string `json:"response_code,omitempty"`
	ResponseDescription string `json:"response_description,omitempty"`
	CustomerMessage     string `json:"customer_message,omitempty"`
}

func (s *CheckoutService) InitiateStkPush(ctx context.Context, orderID uint64) (*StkPushReply, error) {
	ack, err := s.uc.InitiateStkPush(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &StkPushReply{
		Success:             true,
		MerchantRequestID:   ack.MerchantRequestID,
		CheckoutRequestID:   ack.CheckoutRequestID,
		ResponseCode:        ack.ResponseCode,
		ResponseDescription: ack.ResponseDescription,
		CustomerMessage:     ack.CustomerMessage,
	}, nil
}

func (s *CheckoutService) GetOrderStatus(ctx context.Context, orderID uint64) (*biz.OrderStatusView, error) {
	return s.uc.GetOrderStatus(ctx, orderID)
}

// CallbackItem is one Name/Value pair of Daraja callback metadata. Value may
// be a JSON string or number depending on the field.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// StkCallbackEnvelope is the nested structure Daraja delivers to the
// callback URL.
type StkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []CallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// CallbackAck is the fixed acknowledgment Daraja expects. It confirms
// delivery only; the business outcome never changes its shape.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func receivedAck() *CallbackAck {
	return &CallbackAck{ResultCode: 0, ResultDesc: "Callback received successfully"}
}

// HandleCallback reconciles one provider callback. A missing correlation
// token means the request itself is malformed and is the only condition
// reported as an error; every internal outcome, including an unknown token
// or an amount mismatch, is logged and still acknowledged so the provider
// stops redelivering.
func (s *CheckoutService) HandleCallback(ctx context.Context, env *StkCallbackEnvelope) (*CallbackAck, error) {
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, errors.Validation("callback is missing CheckoutRequestID")
	}

	meta := flattenMetadata(cb.CallbackMetadata.Item)
	result := &biz.CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Amount:            meta["Amount"],
		MpesaReceipt:      meta["MpesaReceiptNumber"],
		TransactionDate:   meta["TransactionDate"],
		PhoneNumber:       meta["PhoneNumber"],
	}

	switch err := s.uc.Reconcile(ctx, result); {
	case err == nil:
	case errors.IsCallbackNotFound(err):
		s.log.Warnf("Callback for unknown checkout request %s acknowledged and dropped", cb.CheckoutRequestID)
	case errors.IsAmountMismatch(err):
		s.log.Errorf("AMOUNT MISMATCH on checkout request %s, order left untouched for investigation: %v", cb.CheckoutRequestID, err)
	default:
		s.log.Errorf("Callback reconciliation for %s failed internally, acknowledged anyway: %v", cb.CheckoutRequestID, err)
	}
	return receivedAck(), nil
}

// flattenMetadata turns the Name/Value item list into a lookup map with all
// values rendered as strings.
func flattenMetadata(items []CallbackItem) map[string]string {
	meta := make(map[string]string, len(items))
	for _, item := range items {
		if len(item.Value) == 0 {
			continue
		}
		var str string
		if err := json.Unmarshal(item.Value, &str); err == nil {
			meta[item.Name] = str
			continue
		}
		var num json.Number
		if err := json.Unmarshal(item.Value, &num); err == nil {
			meta[item.Name] = num.String()
		}
	}
	return meta
}
