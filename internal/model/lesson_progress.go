package model

import "time"

// LessonProgress 课时完成记录，归属于某条报名
// swagger:model LessonProgress
type LessonProgress struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	EnrollmentID string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_progress_enrollment_lesson" json:"enrollmentId"`
	LessonID     uint       `gorm:"not null;uniqueIndex:idx_progress_enrollment_lesson" json:"lessonId"`
	CompletedAt  *time.Time `json:"completedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}
