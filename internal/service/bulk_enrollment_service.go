package service

import (
	"context"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BulkEnrollmentInput 批量报名请求
type BulkEnrollmentInput struct {
	CourseID         uint
	UserEmails       []string
	PaymentConfirmed bool
	ExpiresAt        *time.Time
	EnrolledByID     uint
}

// BulkEnrollmentFailure 单个邮箱的失败原因
type BulkEnrollmentFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type BulkEnrollmentSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BulkEnrollmentResult 批量报名结果，单条失败不影响其余条目
type BulkEnrollmentResult struct {
	Successful []model.EnrollmentDetail `json:"successful"`
	Failed     []BulkEnrollmentFailure  `json:"failed"`
	Summary    BulkEnrollmentSummary    `json:"summary"`
}

type BulkEnrollmentService struct {
	Enrollments *EnrollmentService
	Courses     CourseCatalog
}

func NewBulkEnrollmentService(enrollments *EnrollmentService, courses CourseCatalog) *BulkEnrollmentService {
	return &BulkEnrollmentService{Enrollments: enrollments, Courses: courses}
}

// BulkEnroll 课程只校验一次；邮箱按顺序逐个报名，失败记录到结果中
func (s *BulkEnrollmentService) BulkEnroll(ctx context.Context, input BulkEnrollmentInput) (*BulkEnrollmentResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "enrollment.bulk")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("course.id", int64(input.CourseID)),
		attribute.Int("bulk.total", len(input.UserEmails)),
	)

	if _, err := s.Courses.FindByID(ctx, input.CourseID); err != nil {
		return nil, lookupError(err, repository.ErrCourseNotFound, "course %d not found", input.CourseID)
	}

	result := &BulkEnrollmentResult{
		Successful: []model.EnrollmentDetail{},
		Failed:     []BulkEnrollmentFailure{},
	}
	for _, raw := range input.UserEmails {
		email := util.NormalizeEmail(raw)
		if email == "" {
			result.Failed = append(result.Failed, BulkEnrollmentFailure{Email: raw, Error: "user email is required"})
			continue
		}

		detail, err := s.Enrollments.CreateManual(ctx, ManualEnrollmentInput{
			UserEmail:        email,
			CourseID:         input.CourseID,
			PaymentConfirmed: input.PaymentConfirmed,
			ExpiresAt:        input.ExpiresAt,
			EnrolledByID:     input.EnrolledByID,
		})
		if err != nil {
			result.Failed = append(result.Failed, BulkEnrollmentFailure{Email: email, Error: util.Message(err)})
			continue
		}
		result.Successful = append(result.Successful, *detail)
	}

	result.Summary = BulkEnrollmentSummary{
		Total:      len(input.UserEmails),
		Successful: len(result.Successful),
		Failed:     len(result.Failed),
	}
	span.SetAttributes(
		attribute.Int("bulk.successful", result.Summary.Successful),
		attribute.Int("bulk.failed", result.Summary.Failed),
	)

	logger.Log.Info("Bulk enrollment finished",
		zap.Uint("courseId", input.CourseID),
		zap.Int("total", result.Summary.Total),
		zap.Int("successful", result.Summary.Successful),
		zap.Int("failed", result.Summary.Failed))
	return result, nil
}
