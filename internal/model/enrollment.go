package model

import (
	"strings"
	"time"
)

// EnrollmentStatus 报名状态
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentExpired   EnrollmentStatus = "EXPIRED"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentSuspended, EnrollmentCompleted, EnrollmentExpired:
		return true
	}
	return false
}

// Reason 访问被拒时使用的小写状态名
func (s EnrollmentStatus) Reason() string {
	return strings.ToLower(string(s))
}

// Enrollment 学员与课程的绑定关系，(user_id, course_id) 唯一
// swagger:model Enrollment
type Enrollment struct {
	UUIDBase
	UserID           uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"userId"`
	CourseID         uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course;index:idx_enrollment_course" json:"courseId"`
	EnrolledByID     uint             `gorm:"not null" json:"enrolledById"`
	Status           EnrollmentStatus `gorm:"size:20;not null;default:'ACTIVE';index" json:"status"`
	PaymentConfirmed bool             `gorm:"not null;default:false" json:"paymentConfirmed"`
	EnrolledAt       time.Time        `gorm:"not null" json:"enrolledAt"`
	ExpiresAt        *time.Time       `gorm:"index" json:"expiresAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// IsExpired 过期是派生条件，与状态是否已被标记为 EXPIRED 无关
func (e *Enrollment) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// ProgressSummary 由完成记录实时计算，不落库
type ProgressSummary struct {
	CompletedLessons     int `json:"completedLessons"`
	TotalLessons         int `json:"totalLessons"`
	CompletionPercentage int `json:"completionPercentage"`
}

// EnrollmentDetail 读接口返回的报名记录，附带用户、课程与进度
// swagger:model EnrollmentDetail
type EnrollmentDetail struct {
	Enrollment
	User       *UserSummary    `json:"user,omitempty"`
	Course     *CourseSummary  `json:"course,omitempty"`
	EnrolledBy *UserSummary    `json:"enrolledBy,omitempty"`
	Progress   ProgressSummary `json:"progress"`
}
