package model

import "time"

// StkTransaction is the pending provider transaction row. The checkout
// request id is the callback join key and never changes once written.
type StkTransaction struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	OrderID           uint64    `gorm:"column:order_id;not null;uniqueIndex"`
	PhoneNumber       string    `gorm:"column:phone_number;type:varchar(15);not null"`
	Amount            int64     `gorm:"column:amount;not null"`
	Status            string    `gorm:"column:status;type:enum('initiated','completed','failed');not null;default:'initiated'"`
	CheckoutRequestID string    `gorm:"column:checkout_request_id;type:varchar(64);uniqueIndex;not null"`
	MpesaReceipt      string    `gorm:"column:mpesa_receipt;type:varchar(32)"`
	TransactionDate   string    `gorm:"column:transaction_date;type:varchar(20)"`
	ResultDesc        string    `gorm:"column:result_desc;type:varchar(255)"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StkTransaction) TableName() string { return "stk_transactions" }
