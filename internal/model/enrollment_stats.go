package model

import "time"

// EnrollmentStats 报名统计
type EnrollmentStats struct {
	Total            int64 `json:"total"`
	Active           int64 `json:"active"`
	Suspended        int64 `json:"suspended"`
	Completed        int64 `json:"completed"`
	Expired          int64 `json:"expired"`
	PaymentConfirmed int64 `json:"paymentConfirmed"`
	PaymentPending   int64 `json:"paymentPending"`
	ExpiringSoon     int64 `json:"expiringSoon"`
}

// CourseEnrollmentStats 单门课程的报名统计
type CourseEnrollmentStats struct {
	CourseID    uint   `json:"courseId"`
	CourseTitle string `json:"courseTitle"`
	EnrollmentStats
	AverageProgress int `json:"averageProgress"`
}

// ExpiredEnrollment 过期清理时被标记的报名快照
type ExpiredEnrollment struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"userId"`
	CourseID  uint      `json:"courseId"`
	ExpiredAt time.Time `json:"expiredAt"`
}
