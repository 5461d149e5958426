package model

// OrderItem is a line item row, cascade-deleted with its order.
type OrderItem struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement;column:id"`
	OrderID   uint64 `gorm:"column:order_id;not null;index;constraint:OnDelete:CASCADE"`
	ProductID uint64 `gorm:"column:product_id;not null"`
	Quantity  int    `gorm:"column:quantity;not null"`
	Subtotal  int64  `gorm:"column:subtotal;not null"`
}

func (OrderItem) TableName() string { return "order_items" }
