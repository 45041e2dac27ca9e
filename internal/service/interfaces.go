package service

import (
	"context"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"time"
)

// EnrollmentStore 报名记录的持久化接口，gorm 与内存实现见 repository 包
type EnrollmentStore interface {
	Create(ctx context.Context, enrollment *model.Enrollment) error
	FindByID(ctx context.Context, id string) (*model.Enrollment, error)
	FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Enrollment, error)
	FindMany(ctx context.Context, filter repository.EnrollmentFilter, opts repository.ListOptions) ([]model.Enrollment, int64, error)
	Count(ctx context.Context, filter repository.EnrollmentFilter) (int64, error)
	CountByStatus(ctx context.Context, filter repository.EnrollmentFilter) (map[model.EnrollmentStatus]int64, error)
	Update(ctx context.Context, enrollment *model.Enrollment) error
	Delete(ctx context.Context, id string) (*repository.DeleteResult, error)
	ExpireLapsed(ctx context.Context, now time.Time) ([]model.ExpiredEnrollment, error)
}

// CompletionLedger 课时完成记录的只读聚合
type CompletionLedger interface {
	CountCompleted(ctx context.Context, enrollmentID string) (int64, error)
}

type UserDirectory interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type CourseCatalog interface {
	FindByID(ctx context.Context, id uint) (*model.Course, error)
	CountLessons(ctx context.Context, courseID uint) (int64, error)
	FindLessonInCourse(ctx context.Context, courseID, lessonID uint) (*model.LessonLocation, error)
}

// EnrollmentNotification 报名成功后发给学员的通知内容
type EnrollmentNotification struct {
	CourseTitle string `json:"courseTitle"`
	CourseID    uint   `json:"courseId"`
}

type Notifier interface {
	NotifyEnrollment(ctx context.Context, userID uint, notification EnrollmentNotification) error
}

// FileRemover 删除对象存储中的文件（证书）
type FileRemover interface {
	Delete(ctx context.Context, key string) error
}

// Locker 分布式锁，acquired=false 表示锁被其他实例持有
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}
