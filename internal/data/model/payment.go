package model

import "time"

// Payment is the payment record row for an order.
type Payment struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	OrderID       uint64    `gorm:"column:order_id;not null;uniqueIndex"`
	Amount        int64     `gorm:"column:amount;not null"`
	Method        string    `gorm:"column:method;type:enum('cash','mpesa');not null"`
	PhoneNumber   string    `gorm:"column:phone_number;type:varchar(15)"`
	Status        string    `gorm:"column:status;type:enum('pending','initiated','completed','failed');not null;default:'pending'"`
	TransactionID string    `gorm:"column:transaction_id;type:varchar(64);uniqueIndex;not null"`
	MpesaReceipt  string    `gorm:"column:mpesa_receipt;type:varchar(32)"`
	FailureReason string    `gorm:"column:failure_reason;type:varchar(255)"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
