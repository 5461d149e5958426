package data

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/constants"
	"github.com/meikanc/mpesa-backend/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type stkTransactionRepo struct {
	data *Data
	log  *log.Helper
}

// NewStkTransactionRepo creates the STK transaction repository.
func NewStkTransactionRepo(data *Data, logger log.Logger) biz.StkTransactionRepo {
	return &stkTransactionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *stkTransactionRepo) CreateStkTransaction(ctx context.Context, txn *biz.StkTransaction) error {
	m := &model.StkTransaction{
		OrderID:           txn.OrderID,
		PhoneNumber:       txn.PhoneNumber,
		Amount:            int64(txn.Amount),
		Status:            txn.Status,
		CheckoutRequestID: txn.CheckoutRequestID,
		CreatedAt:         txn.CreatedAt,
	}
	if err := r.data.conn(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create stk transaction for order %d: %v", txn.OrderID, err)
		return err
	}
	txn.ID = m.ID
	return nil
}

func (r *stkTransactionRepo) GetByOrder(ctx context.Context, orderID uint64) (*biz.StkTransaction, error) {
	var m model.StkTransaction
	if err := r.data.conn(ctx).First(&m, "order_id = ?", orderID).Error; err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("Failed to get stk transaction for order %d: %v", orderID, err)
		return nil, err
	}
	return stkFromModel(&m), nil
}

// GetByCheckoutRequestIDForUpdate takes SELECT ... FOR UPDATE on the row, so
// concurrent callbacks for the same checkout request id serialize on it
// until the enclosing transaction commits.
func (r *stkTransactionRepo) GetByCheckoutRequestIDForUpdate(ctx context.Context, checkoutRequestID string) (*biz.StkTransaction, error) {
	var m model.StkTransaction
	err := r.data.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, "checkout_request_id = ?", checkoutRequestID).Error
	if err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("Failed to lock stk transaction %s: %v", checkoutRequestID, err)
		return nil, err
	}
	return stkFromModel(&m), nil
}

func (r *stkTransactionRepo) UpdateResult(ctx context.Context, id uint64, status, receipt, transactionDate, resultDesc string) error {
	updates := map[string]interface{}{
		"status":           status,
		"mpesa_receipt":    receipt,
		"transaction_date": transactionDate,
		"result_desc":      resultDesc,
	}
	if err := r.data.conn(ctx).Model(&model.StkTransaction{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		r.log.Errorf("Failed to update stk transaction %d: %v", id, err)
		return err
	}
	return nil
}

func (r *stkTransactionRepo) ListStuckInitiated(ctx context.Context, olderThan time.Time, limit int) ([]*biz.StkTransaction, error) {
	var models []model.StkTransaction
	err := r.data.conn(ctx).
		Where("status = ? AND created_at < ?", constants.StkStatusInitiated, olderThan).
		Order("created_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		r.log.Errorf("Failed to list stuck stk transactions: %v", err)
		return nil, err
	}
	out := make([]*biz.StkTransaction, len(models))
	for i := range models {
		out[i] = stkFromModel(&models[i])
	}
	return out, nil
}

func stkFromModel(m *model.StkTransaction) *biz.StkTransaction {
	return &biz.StkTransaction{
		ID:                m.ID,
		OrderID:           m.OrderID,
		PhoneNumber:       m.PhoneNumber,
		Amount:            biz.Cents(m.Amount),
		Status:            m.Status,
		CheckoutRequestID: m.CheckoutRequestID,
		MpesaReceipt:      m.MpesaReceipt,
		TransactionDate:   m.TransactionDate,
		ResultDesc:        m.ResultDesc,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
