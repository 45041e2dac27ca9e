package model

import "time"

// Certificate 结课证书，文件存放在对象存储中
// swagger:model Certificate
type Certificate struct {
	UUIDBase
	EnrollmentID string    `gorm:"type:varchar(36);not null;index" json:"enrollmentId"`
	FileKey      string    `gorm:"size:255" json:"fileKey"`
	IssuedAt     time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
