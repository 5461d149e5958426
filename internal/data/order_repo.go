package data

import (
	"context"
	goerrors "errors"

	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo creates the order repository.
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *biz.Order) error {
	m := &model.Order{
		TotalAmount:   int64(order.TotalAmount),
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt,
	}
	if err := r.data.conn(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create order: %v", err)
		return err
	}
	order.ID = m.ID
	return nil
}

func (r *orderRepo) GetOrder(ctx context.Context, orderID uint64) (*biz.Order, error) {
	var m model.Order
	if err := r.data.conn(ctx).First(&m, "id = ?", orderID).Error; err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("Failed to get order %d: %v", orderID, err)
		return nil, err
	}
	return orderFromModel(&m), nil
}

func (r *orderRepo) AddItems(ctx context.Context, items []*biz.OrderItem) error {
	models := make([]*model.OrderItem, len(items))
	for i, item := range items {
		models[i] = &model.OrderItem{
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  int64(item.Subtotal),
		}
	}
	if err := r.data.conn(ctx).Create(&models).Error; err != nil {
		r.log.Errorf("Failed to add order items: %v", err)
		return err
	}
	for i, m := range models {
		items[i].ID = m.ID
	}
	return nil
}

func (r *orderRepo) UpdateOrderStatus(ctx context.Context, orderID uint64, status, paymentStatus string) error {
	updates := map[string]interface{}{
		"status":         status,
		"payment_status": paymentStatus,
	}
	if err := r.data.conn(ctx).Model(&model.Order{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
		r.log.Errorf("Failed to update order %d status: %v", orderID, err)
		return err
	}
	return nil
}

func (r *orderRepo) AttachCheckoutRequestID(ctx context.Context, orderID uint64, checkoutRequestID string) error {
	if err := r.data.conn(ctx).Model(&model.Order{}).Where("id = ?", orderID).
		Update("checkout_request_id", checkoutRequestID).Error; err != nil {
		r.log.Errorf("Failed to attach checkout request id to order %d: %v", orderID, err)
		return err
	}
	return nil
}

func orderFromModel(m *model.Order) *biz.Order {
	return &biz.Order{
		ID:                m.ID,
		TotalAmount:       biz.Cents(m.TotalAmount),
		Status:            m.Status,
		PaymentStatus:     m.PaymentStatus,
		CheckoutRequestID: m.CheckoutRequestID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
