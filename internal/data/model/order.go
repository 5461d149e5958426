package model

import "time"

// Order is a checkout order row. Amounts are KES cents.
type Order struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	TotalAmount       int64     `gorm:"column:total_amount;not null"`
	Status            string    `gorm:"column:status;type:enum('pending','processing','completed','failed');not null;default:'pending'"`
	PaymentStatus     string    `gorm:"column:payment_status;type:enum('unpaid','paid','failed');not null;default:'unpaid'"`
	CheckoutRequestID string    `gorm:"column:checkout_request_id;type:varchar(64);index"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
