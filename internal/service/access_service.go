package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/pkg/monitoring"
	"time"
)

// 访问判定原因
const (
	ReasonGranted            = "access granted"
	ReasonNotEnrolled        = "not enrolled"
	ReasonExpired            = "expired"
	ReasonCourseNotFound     = "course not found"
	ReasonCourseNotPublished = "course not published"
	ReasonLessonNotInCourse  = "lesson not found in this course"
)

// AccessResult 访问判定结果，拒绝访问是正常结果而非错误
type AccessResult struct {
	HasAccess  bool                  `json:"hasAccess"`
	Reason     string                `json:"reason"`
	Enrollment *model.Enrollment     `json:"enrollment,omitempty"`
	Lesson     *model.LessonLocation `json:"lesson,omitempty"`
}

// AccessService 根据报名状态、过期时间和课程发布状态判断能否访问课程内容
type AccessService struct {
	Enrollments EnrollmentStore
	Catalog     CourseCatalog
	Now         func() time.Time
}

func NewAccessService(enrollments EnrollmentStore, catalog CourseCatalog) *AccessService {
	return &AccessService{
		Enrollments: enrollments,
		Catalog:     catalog,
		Now:         time.Now,
	}
}

// CheckCourseAccess 按顺序检查，遇到第一个不满足的条件即返回；缴费状态不参与判定
func (s *AccessService) CheckCourseAccess(ctx context.Context, courseID, userID uint) (*AccessResult, error) {
	result, err := s.checkCourse(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}
	monitoring.AccessDecisions.WithLabelValues("course", result.Reason).Inc()
	return result, nil
}

// CheckLessonAccess 课程可访问后再确认课时属于该课程
func (s *AccessService) CheckLessonAccess(ctx context.Context, courseID, lessonID, userID uint) (*AccessResult, error) {
	result, err := s.checkCourse(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}
	if !result.HasAccess {
		monitoring.AccessDecisions.WithLabelValues("lesson", result.Reason).Inc()
		return result, nil
	}

	location, err := s.Catalog.FindLessonInCourse(ctx, courseID, lessonID)
	if err != nil {
		if !errors.Is(err, repository.ErrLessonNotFound) {
			return nil, err
		}
		result = &AccessResult{HasAccess: false, Reason: ReasonLessonNotInCourse, Enrollment: result.Enrollment}
		monitoring.AccessDecisions.WithLabelValues("lesson", result.Reason).Inc()
		return result, nil
	}

	result.Lesson = location
	monitoring.AccessDecisions.WithLabelValues("lesson", result.Reason).Inc()
	return result, nil
}

func (s *AccessService) checkCourse(ctx context.Context, courseID, userID uint) (*AccessResult, error) {
	enrollment, err := s.Enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return &AccessResult{HasAccess: false, Reason: ReasonNotEnrolled}, nil
		}
		return nil, err
	}

	if enrollment.Status != model.EnrollmentActive {
		return &AccessResult{HasAccess: false, Reason: enrollment.Status.Reason(), Enrollment: enrollment}, nil
	}

	// 状态仍为 ACTIVE 但已过期（清理任务尚未执行）
	if enrollment.IsExpired(s.Now()) {
		return &AccessResult{HasAccess: false, Reason: ReasonExpired, Enrollment: enrollment}, nil
	}

	course, err := s.Catalog.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrCourseNotFound) {
			return &AccessResult{HasAccess: false, Reason: ReasonCourseNotFound, Enrollment: enrollment}, nil
		}
		return nil, err
	}
	if course.Status != model.CoursePublished {
		return &AccessResult{HasAccess: false, Reason: ReasonCourseNotPublished, Enrollment: enrollment}, nil
	}

	return &AccessResult{HasAccess: true, Reason: ReasonGranted, Enrollment: enrollment}, nil
}
