package repository

import (
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"time"
)

// EnrollmentFilter 报名查询条件，所有非空条件之间为 AND 关系
type EnrollmentFilter struct {
	UserID           uint
	CourseID         uint
	Status           model.EnrollmentStatus
	PaymentConfirmed *bool
	// Expired=true: 状态为 EXPIRED 或 expires_at 已过；Expired=false: 两者都不成立
	Expired *bool
	// Search 匹配学员姓名、邮箱或课程标题
	Search string
	// 到期时间区间（左闭右开），用于统计即将到期的报名
	ExpiresFrom  *time.Time
	ExpiresUntil *time.Time
	// Now 判断过期的参考时间，零值表示当前时间
	Now time.Time
}

func (f EnrollmentFilter) now() time.Time {
	if f.Now.IsZero() {
		return time.Now()
	}
	return f.Now
}

// ListOptions 分页与排序
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

const (
	SortByEnrolledAt = "enrolledAt"
	SortByExpiresAt  = "expiresAt"
	SortByStatus     = "status"
	SortByUpdatedAt  = "updatedAt"
)

var sortColumns = map[string]string{
	SortByEnrolledAt: "enrollments.enrolled_at",
	SortByExpiresAt:  "enrollments.expires_at",
	SortByStatus:     "enrollments.status",
	SortByUpdatedAt:  "enrollments.updated_at",
}

// Normalize 填充默认值并限制每页数量
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = util.DefaultPage
	}
	if o.Limit < 1 {
		o.Limit = util.DefaultLimit
	}
	if o.Limit > util.MaxLimit {
		o.Limit = util.MaxLimit
	}
	if _, ok := sortColumns[o.SortBy]; !ok {
		o.SortBy = SortByEnrolledAt
	}
	if o.SortOrder != "asc" {
		o.SortOrder = "desc"
	}
	return o
}

func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// DeleteResult 级联删除的结果
type DeleteResult struct {
	CompletionRecords int64    `json:"completionRecords"`
	Certificates      int64    `json:"certificates"`
	PaymentReceipts   int64    `json:"paymentReceipts"`
	CertificateFiles  []string `json:"-"`
}
