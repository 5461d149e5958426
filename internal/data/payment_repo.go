package data

import (
	"context"
	goerrors "errors"

	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type paymentRepo struct {
	data *Data
	log  *log.Helper
}

// NewPaymentRepo creates the payment repository.
func NewPaymentRepo(data *Data, logger log.Logger) biz.PaymentRepo {
	return &paymentRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *paymentRepo) CreatePayment(ctx context.Context, payment *biz.Payment) error {
	m := &model.Payment{
		OrderID:       payment.OrderID,
		Amount:        int64(payment.Amount),
		Method:        payment.Method,
		PhoneNumber:   payment.PhoneNumber,
		Status:        payment.Status,
		TransactionID: payment.TransactionID,
		CreatedAt:     payment.CreatedAt,
	}
	if err := r.data.conn(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create payment for order %d: %v", payment.OrderID, err)
		return err
	}
	payment.ID = m.ID
	return nil
}

func (r *paymentRepo) GetPaymentByOrder(ctx context.Context, orderID uint64) (*biz.Payment, error) {
	var m model.Payment
	if err := r.data.conn(ctx).First(&m, "order_id = ?", orderID).Error; err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("Failed to get payment for order %d: %v", orderID, err)
		return nil, err
	}
	return &biz.Payment{
		ID:            m.ID,
		OrderID:       m.OrderID,
		Amount:        biz.Cents(m.Amount),
		Method:        m.Method,
		PhoneNumber:   m.PhoneNumber,
		Status:        m.Status,
		TransactionID: m.TransactionID,
		MpesaReceipt:  m.MpesaReceipt,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func (r *paymentRepo) UpdatePaymentResult(ctx context.Context, orderID uint64, status, receipt, failureReason string) error {
	updates := map[string]interface{}{
		"status":         status,
		"mpesa_receipt":  receipt,
		"failure_reason": failureReason,
	}
	if err := r.data.conn(ctx).Model(&model.Payment{}).Where("order_id = ?", orderID).Updates(updates).Error; err != nil {
		r.log.Errorf("Failed to update payment for order %d: %v", orderID, err)
		return err
	}
	return nil
}
