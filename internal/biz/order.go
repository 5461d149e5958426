package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(NewCheckoutUsecase)

// Cents is a fixed-point KES amount in cents. All money arithmetic and
// comparisons in this service happen on this type; floats never enter.
type Cents int64

// Shillings returns the whole-shilling part of the amount.
func (c Cents) Shillings() int64 { return int64(c) / 100 }

// Whole reports whether the amount has no sub-shilling part.
func (c Cents) Whole() bool { return c%100 == 0 }

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Order is a checkout order aggregate root. Status and PaymentStatus only
// ever move toward a terminal state; completed/failed orders are never
// reopened.
type Order struct {
	ID                uint64
	TotalAmount       Cents
	Status            string // pending, processing, completed, failed
	PaymentStatus     string // unpaid, paid, failed
	CheckoutRequestID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderItem is a line item owned by exactly one order. Subtotal is computed
// once at write time and kept as a historical record.
type OrderItem struct {
	ID        uint64
	OrderID   uint64
	ProductID uint64
	Quantity  int
	Subtotal  Cents
}

// Payment is the payment record attached to an order. Amount equals the
// order total at creation time.
type Payment struct {
	ID            uint64
	OrderID       uint64
	Amount        Cents
	Method        string // cash, mpesa
	PhoneNumber   string
	Status        string // pending, initiated, completed, failed
	TransactionID string
	MpesaReceipt  string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StkTransaction is the pending provider transaction created for
// asynchronous payments. CheckoutRequestID is the correlation token that
// joins the STK push to its later callback; it is unique and immutable once
// written.
type StkTransaction struct {
	ID                uint64
	OrderID           uint64
	PhoneNumber       string
	Amount            Cents
	Status            string // initiated, completed, failed
	CheckoutRequestID string
	MpesaReceipt      string
	TransactionDate   string
	ResultDesc        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderStatusView is the read model served by the order status endpoint.
type OrderStatusView struct {
	OrderID       uint64 `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Method        string `json:"method"`
	Amount        Cents  `json:"amount"`
	TransactionID string `json:"transaction_id"`
	MpesaReceipt  string `json:"mpesa_receipt,omitempty"`
}

// OrderRepo persists orders and their line items.
type OrderRepo interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID uint64) (*Order, error)
	AddItems(ctx context.Context, items []*OrderItem) error
	UpdateOrderStatus(ctx context.Context, orderID uint64, status, paymentStatus string) error
	AttachCheckoutRequestID(ctx context.Context, orderID uint64, checkoutRequestID string) error
}

// PaymentRepo persists payment records.
type PaymentRepo interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPaymentByOrder(ctx context.Context, orderID uint64) (*Payment, error)
	UpdatePaymentResult(ctx context.Context, orderID uint64, status, receipt, failureReason string) error
}

// StkTransactionRepo persists pending provider transactions.
type StkTransactionRepo interface {
	CreateStkTransaction(ctx context.Context, txn *StkTransaction) error
	GetByOrder(ctx context.Context, orderID uint64) (*StkTransaction, error)
	// GetByCheckoutRequestIDForUpdate loads the transaction under an
	// exclusive row lock held until the surrounding unit of work commits.
	GetByCheckoutRequestIDForUpdate(ctx context.Context, checkoutRequestID string) (*StkTransaction, error)
	UpdateResult(ctx context.Context, id uint64, status, receipt, transactionDate, resultDesc string) error
	ListStuckInitiated(ctx context.Context, olderThan time.Time, limit int) ([]*StkTransaction, error)
}

// OrderCache caches order status reads. A found=true with a nil view means
// the miss itself is cached.
type OrderCache interface {
	GetOrderStatus(ctx context.Context, orderID uint64) (view *OrderStatusView, found bool, err error)
	SetOrderStatus(ctx context.Context, orderID uint64, view *OrderStatusView) error
	Invalidate(ctx context.Context, orderID uint64) error
}

// Transaction runs fn inside one atomic unit of work: every write made
// through the repos is durably visible afterwards, or none are.
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

// StkPushRequest carries the fields of an STK push initiation. Shortcode,
// password and callback URL are supplied by the gateway implementation.
type StkPushRequest struct {
	Amount           Cents
	PhoneNumber      string
	AccountReference string
	Description      string
}

// StkPushAck is the provider's raw acknowledgment of a push request.
type StkPushAck struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// StkQueryResult is the provider's answer to a transaction status query.
// Pending means the provider has no outcome yet.
type StkQueryResult struct {
	Pending    bool
	ResultCode int
	ResultDesc string
}

// MpesaGateway is the anti-corruption interface over the Daraja API. The
// coordinator never retries a failed call; the pending transaction stays
// initiated for later follow-up.
type MpesaGateway interface {
	Authenticate(ctx context.Context) (accessToken string, err error)
	InitiatePush(ctx context.Context, accessToken string, req *StkPushRequest) (*StkPushAck, error)
	QueryStatus(ctx context.Context, accessToken, checkoutRequestID string) (*StkQueryResult, error)
}
