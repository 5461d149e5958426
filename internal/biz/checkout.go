package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meikanc/mpesa-backend/internal/conf"
	"github.com/meikanc/mpesa-backend/internal/constants"
	"github.com/meikanc/mpesa-backend/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// CheckoutUsecase drives an order from checkout through the asynchronous
// M-Pesa payment flow to a terminal state.
type CheckoutUsecase struct {
	orders   OrderRepo
	payments PaymentRepo
	stkRepo  StkTransactionRepo
	cache    OrderCache
	tm       Transaction
	gateway  MpesaGateway
	rs       *redsync.Redsync
	config   *conf.Bootstrap
	log      *log.Helper
}

func NewCheckoutUsecase(orders OrderRepo, payments PaymentRepo, stkRepo StkTransactionRepo, cache OrderCache, tm Transaction, gateway MpesaGateway, rs *redsync.Redsync, c *conf.Bootstrap, logger log.Logger) *CheckoutUsecase {
	return &CheckoutUsecase{
		orders:   orders,
		payments: payments,
		stkRepo:  stkRepo,
		cache:    cache,
		tm:       tm,
		gateway:  gateway,
		rs:       rs,
		config:   c,
		log:      log.NewHelper(logger),
	}
}

// CartItemInput is one raw cart entry as received from the client.
type CartItemInput struct {
	ProductID uint64
	Quantity  int
	Price     string
}

// PlaceOrderInput is the raw checkout request.
type PlaceOrderInput struct {
	Method string
	Amount string
	Phone  string
	Items  []*CartItemInput
}

// PlaceOrderResult reports the identifiers assigned during checkout.
type PlaceOrderResult struct {
	OrderID           uint64
	TransactionID     string
	CheckoutRequestID string
	Total             Cents
}

// PlaceOrder validates the checkout request and materializes the order, its
// line items, the payment record and, for mpesa, the pending STK transaction
// in one atomic unit. The provider is NOT contacted here: the correlation
// token is generated locally so a provider outage never blocks order
// durability.
func (uc *CheckoutUsecase) PlaceOrder(ctx context.Context, in *PlaceOrderInput) (*PlaceOrderResult, error) {
	method := strings.ToLower(strings.TrimSpace(in.Method))
	switch method {
	case constants.MethodCash, constants.MethodMpesa:
	case "":
		return nil, errors.Validation("payment method is required")
	default:
		return nil, errors.Validation("unsupported payment method %q", in.Method)
	}

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	items := make([]*CartItem, 0, len(in.Items))
	for i, raw := range in.Items {
		price, err := ParsePrice(raw.Price)
		if err != nil {
			return nil, errors.Validation("cart item %d: %s", i, err.Error())
		}
		items = append(items, &CartItem{ProductID: raw.ProductID, Quantity: raw.Quantity, Price: price})
	}
	if err := ValidateCart(items); err != nil {
		return nil, err
	}

	total := CartTotal(items)
	if total != amount {
		return nil, errors.Validation("amount %s does not match cart total %s", amount, total)
	}

	phone := ""
	if method == constants.MethodMpesa {
		phone, err = NormalizeMpesaPhone(in.Phone)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	res := &PlaceOrderResult{Total: total}
	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		order := &Order{
			TotalAmount:   total,
			Status:        constants.OrderStatusPending,
			PaymentStatus: constants.OrderPaymentUnpaid,
			CreatedAt:     now,
		}
		if method == constants.MethodMpesa {
			order.Status = constants.OrderStatusProcessing
		}
		if err := uc.orders.CreateOrder(ctx, order); err != nil {
			return err
		}

		orderItems := make([]*OrderItem, len(items))
		for i, item := range items {
			orderItems[i] = &OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Subtotal:  item.Price * Cents(item.Quantity),
			}
		}
		if err := uc.orders.AddItems(ctx, orderItems); err != nil {
			return err
		}

		transactionID := fmt.Sprintf("TXN%d%d", now.UnixNano(), order.ID)
		payment := &Payment{
			OrderID:       order.ID,
			Amount:        total,
			Method:        method,
			PhoneNumber:   phone,
			Status:        constants.PaymentStatusPending,
			TransactionID: transactionID,
			CreatedAt:     now,
		}
		if method == constants.MethodMpesa {
			payment.Status = constants.PaymentStatusInitiated
		}
		if err := uc.payments.CreatePayment(ctx, payment); err != nil {
			return err
		}

		if method == constants.MethodMpesa {
			checkoutRequestID := fmt.Sprintf("ws_CO_%d_%d", now.UnixNano(), order.ID)
			stk := &StkTransaction{
				OrderID:           order.ID,
				PhoneNumber:       phone,
				Amount:            total,
				Status:            constants.StkStatusInitiated,
				CheckoutRequestID: checkoutRequestID,
				CreatedAt:         now,
			}
			if err := uc.stkRepo.CreateStkTransaction(ctx, stk); err != nil {
				return err
			}
			if err := uc.orders.AttachCheckoutRequestID(ctx, order.ID, checkoutRequestID); err != nil {
				return err
			}
			res.CheckoutRequestID = checkoutRequestID
		}

		res.OrderID = order.ID
		res.TransactionID = transactionID
		return nil
	})
	if err != nil {
		uc.log.Errorf("Failed to place order: %v", err)
		return nil, errors.Persistence(err)
	}

	uc.log.Infof("Placed order %d: method=%s, total=%s, txn=%s", res.OrderID, method, total, res.TransactionID)
	return res, nil
}

// InitiateStkPush authenticates against Daraja and pushes the payment prompt
// for an order's pending STK transaction. It writes no local state: the
// provider's callback is the only authority on the outcome, so a failure or
// timeout here leaves the transaction initiated for later follow-up.
func (uc *CheckoutUsecase) InitiateStkPush(ctx context.Context, orderID uint64) (*StkPushAck, error) {
	stk, err := uc.stkRepo.GetByOrder(ctx, orderID)
	if err != nil {
		uc.log.Errorf("Failed to load stk transaction for order %d: %v", orderID, err)
		return nil, errors.Persistence(err)
	}
	if stk == nil {
		return nil, errors.OrderNotFound(orderID)
	}

	token, err := uc.gateway.Authenticate(ctx)
	if err != nil {
		uc.log.Errorf("Daraja auth failed for order %d: %v", orderID, err)
		return nil, err
	}

	ack, err := uc.gateway.InitiatePush(ctx, token, &StkPushRequest{
		Amount:           stk.Amount,
		PhoneNumber:      stk.PhoneNumber,
		AccountReference: uc.accountReference(orderID),
		Description:      fmt.Sprintf("Payment for order %d", orderID),
	})
	if err != nil {
		uc.log.Errorf("STK push failed for order %d: %v", orderID, err)
		return nil, err
	}

	uc.log.Infof("STK push accepted for order %d: merchant=%s, response=%s", orderID, ack.MerchantRequestID, ack.ResponseCode)
	return ack, nil
}

// GetOrderStatus serves the order status read model, cache-aside with
// null caching for unknown ids.
func (uc *CheckoutUsecase) GetOrderStatus(ctx context.Context, orderID uint64) (*OrderStatusView, error) {
	view, found, err := uc.cache.GetOrderStatus(ctx, orderID)
	if err != nil {
		uc.log.Warnf("Order status cache read failed for order %d: %v", orderID, err)
	} else if found {
		if view == nil {
			return nil, errors.OrderNotFound(orderID)
		}
		return view, nil
	}

	order, err := uc.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Persistence(err)
	}
	if order == nil {
		if err := uc.cache.SetOrderStatus(ctx, orderID, nil); err != nil {
			uc.log.Warnf("Failed to cache order miss for %d: %v", orderID, err)
		}
		return nil, errors.OrderNotFound(orderID)
	}

	payment, err := uc.payments.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Persistence(err)
	}

	view = &OrderStatusView{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Amount:        order.TotalAmount,
	}
	if payment != nil {
		view.Method = payment.Method
		view.TransactionID = payment.TransactionID
		view.MpesaReceipt = payment.MpesaReceipt
	}
	if err := uc.cache.SetOrderStatus(ctx, orderID, view); err != nil {
		uc.log.Warnf("Failed to cache order status for %d: %v", orderID, err)
	}
	return view, nil
}

func (uc *CheckoutUsecase) accountReference(orderID uint64) string {
	prefix := "ORDER"
	if uc.config != nil && uc.config.Mpesa != nil && uc.config.Mpesa.AccountReference != "" {
		prefix = uc.config.Mpesa.AccountReference
	}
	return fmt.Sprintf("%s%d", prefix, orderID)
}
