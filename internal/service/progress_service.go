package service

import (
	"context"
	"errors"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"math"
)

// ProgressService 根据完成记录实时计算学习进度，不做缓存
type ProgressService struct {
	Enrollments EnrollmentStore
	Ledger      CompletionLedger
	Catalog     CourseCatalog
}

func NewProgressService(enrollments EnrollmentStore, ledger CompletionLedger, catalog CourseCatalog) *ProgressService {
	return &ProgressService{
		Enrollments: enrollments,
		Ledger:      ledger,
		Catalog:     catalog,
	}
}

// ComputeProgress 未报名时返回零值而不是错误
func (s *ProgressService) ComputeProgress(ctx context.Context, userID, courseID uint) (model.ProgressSummary, error) {
	enrollment, err := s.Enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return model.ProgressSummary{}, nil
		}
		return model.ProgressSummary{}, err
	}
	return s.ForEnrollment(ctx, enrollment)
}

// ForEnrollment 计算单条报名的进度
func (s *ProgressService) ForEnrollment(ctx context.Context, enrollment *model.Enrollment) (model.ProgressSummary, error) {
	total, err := s.Catalog.CountLessons(ctx, enrollment.CourseID)
	if err != nil {
		return model.ProgressSummary{}, fmt.Errorf("count lessons of course %d: %w", enrollment.CourseID, err)
	}
	completed, err := s.Ledger.CountCompleted(ctx, enrollment.ID)
	if err != nil {
		return model.ProgressSummary{}, fmt.Errorf("count completed lessons of enrollment %s: %w", enrollment.ID, err)
	}
	return Summarize(int(completed), int(total)), nil
}

// Summarize 完成数不超过总课时数，百分比四舍五入到整数
func Summarize(completed, total int) model.ProgressSummary {
	if completed < 0 {
		completed = 0
	}
	if total > 0 && completed > total {
		completed = total
	}
	return model.ProgressSummary{
		CompletedLessons:     completed,
		TotalLessons:         total,
		CompletionPercentage: CompletionPercentage(completed, total),
	}
}

func CompletionPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
