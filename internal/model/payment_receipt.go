package model

import "time"

// PaymentReceipt 报名缴费凭证
// swagger:model PaymentReceipt
type PaymentReceipt struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EnrollmentID string    `gorm:"type:varchar(36);not null;index" json:"enrollmentId"`
	Amount       float64   `gorm:"not null" json:"amount"`
	Currency     string    `gorm:"size:10;default:'CNY'" json:"currency"`
	Reference    string    `gorm:"size:100" json:"reference"`
	PaidAt       time.Time `json:"paidAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (PaymentReceipt) TableName() string {
	return "payment_receipts"
}
