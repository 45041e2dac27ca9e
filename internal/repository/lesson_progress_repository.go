package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LessonProgressRepository 课时完成记录账本
type LessonProgressRepository struct {
	DB *gorm.DB
}

func NewLessonProgressRepository(db *gorm.DB) *LessonProgressRepository {
	return &LessonProgressRepository{DB: db}
}

// CountCompleted 统计报名下 completed_at 非空的记录数
func (r *LessonProgressRepository) CountCompleted(ctx context.Context, enrollmentID string) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).
		Model(&model.LessonProgress{}).
		Where("enrollment_id = ? AND completed_at IS NOT NULL", enrollmentID).
		Count(&total).Error
	return total, err
}

// MarkLessonCompleted 更新课时完成状态，不存在则创建（课时完成流程和初始化数据使用）
func (r *LessonProgressRepository) MarkLessonCompleted(ctx context.Context, enrollmentID string, lessonID uint, completed bool) error {
	var completedAt *time.Time
	if completed {
		now := time.Now()
		completedAt = &now
	}

	record := &model.LessonProgress{
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		CompletedAt:  completedAt,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed_at", "updated_at"}),
	}).Create(record).Error
}
