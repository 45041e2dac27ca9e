package service

import (
	"context"
	"errors"
	"fmt"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CreateEnrollmentInput 按用户 ID 创建报名
type CreateEnrollmentInput struct {
	UserID           uint
	CourseID         uint
	EnrolledByID     uint
	PaymentConfirmed bool
	ExpiresAt        *time.Time
}

// ManualEnrollmentInput 管理员按邮箱手动报名
type ManualEnrollmentInput struct {
	UserEmail        string
	CourseID         uint
	PaymentConfirmed bool
	ExpiresAt        *time.Time
	EnrolledByID     uint
}

// EnrollmentPatch 部分更新，nil 字段保持不变
type EnrollmentPatch struct {
	Status           *model.EnrollmentStatus
	ExpiresAt        *time.Time
	ClearExpiresAt   bool
	PaymentConfirmed *bool
}

// EnrollmentService 报名生命周期管理
type EnrollmentService struct {
	Enrollments EnrollmentStore
	Users       UserDirectory
	Courses     CourseCatalog
	Progress    *ProgressService
	Notifier    Notifier
	Files       FileRemover
	Config      config.EnrollmentConfig
	Now         func() time.Time

	inflight sync.WaitGroup
}

func NewEnrollmentService(
	enrollments EnrollmentStore,
	users UserDirectory,
	courses CourseCatalog,
	progress *ProgressService,
	notifier Notifier,
	files FileRemover,
	cfg config.EnrollmentConfig,
) *EnrollmentService {
	return &EnrollmentService{
		Enrollments: enrollments,
		Users:       users,
		Courses:     courses,
		Progress:    progress,
		Notifier:    notifier,
		Files:       files,
		Config:      cfg,
		Now:         time.Now,
	}
}

func (s *EnrollmentService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Create 创建报名，初始状态为 ACTIVE，成功后异步通知学员
func (s *EnrollmentService) Create(ctx context.Context, input CreateEnrollmentInput) (*model.EnrollmentDetail, error) {
	user, err := s.Users.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, lookupError(err, repository.ErrUserNotFound, "user %d not found", input.UserID)
	}

	course, err := s.Courses.FindByID(ctx, input.CourseID)
	if err != nil {
		return nil, lookupError(err, repository.ErrCourseNotFound, "course %d not found", input.CourseID)
	}

	actor := user
	if input.EnrolledByID != input.UserID {
		actor, err = s.Users.FindByID(ctx, input.EnrolledByID)
		if err != nil {
			return nil, lookupError(err, repository.ErrUserNotFound, "enrolling user %d not found", input.EnrolledByID)
		}
	}

	_, err = s.Enrollments.FindByUserAndCourse(ctx, input.UserID, input.CourseID)
	if err == nil {
		return nil, util.ConflictError("user is already enrolled in this course")
	}
	if !errors.Is(err, repository.ErrEnrollmentNotFound) {
		return nil, err
	}

	enrollment := &model.Enrollment{
		UserID:           input.UserID,
		CourseID:         input.CourseID,
		EnrolledByID:     input.EnrolledByID,
		Status:           model.EnrollmentActive,
		PaymentConfirmed: input.PaymentConfirmed,
		EnrolledAt:       s.now(),
		ExpiresAt:        input.ExpiresAt,
	}
	if err := s.Enrollments.Create(ctx, enrollment); err != nil {
		// 并发创建时由唯一索引兜底
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, util.ConflictError("user is already enrolled in this course")
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	monitoring.EnrollmentTransitions.WithLabelValues("create").Inc()
	logger.Log.Info("Enrollment created",
		zap.String("enrollmentId", enrollment.ID),
		zap.Uint("userId", enrollment.UserID),
		zap.Uint("courseId", enrollment.CourseID),
		zap.Uint("enrolledBy", enrollment.EnrolledByID))

	s.notifyEnrollment(user.ID, course)

	progress, err := s.Progress.ForEnrollment(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	return &model.EnrollmentDetail{
		Enrollment: *enrollment,
		User:       user.Summary(),
		Course:     course.Summary(),
		EnrolledBy: actor.Summary(),
		Progress:   progress,
	}, nil
}

// CreateManual 按邮箱查找学员后创建报名
func (s *EnrollmentService) CreateManual(ctx context.Context, input ManualEnrollmentInput) (*model.EnrollmentDetail, error) {
	email := util.NormalizeEmail(input.UserEmail)
	if email == "" {
		return nil, util.ValidationError("user email is required")
	}
	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, lookupError(err, repository.ErrUserNotFound, "user with email %s not found", email)
	}
	return s.Create(ctx, CreateEnrollmentInput{
		UserID:           user.ID,
		CourseID:         input.CourseID,
		EnrolledByID:     input.EnrolledByID,
		PaymentConfirmed: input.PaymentConfirmed,
		ExpiresAt:        input.ExpiresAt,
	})
}

// ConfirmPayment 确认缴费并恢复为 ACTIVE
func (s *EnrollmentService) ConfirmPayment(ctx context.Context, id string) (*model.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.PaymentConfirmed {
		return nil, util.BadRequestError("payment already confirmed")
	}

	enrollment.PaymentConfirmed = true
	enrollment.Status = model.EnrollmentActive
	if err := s.save(ctx, enrollment, "confirm_payment"); err != nil {
		return nil, err
	}
	return s.detail(ctx, enrollment, newDetailCache())
}

func (s *EnrollmentService) Activate(ctx context.Context, id string) (*model.EnrollmentDetail, error) {
	return s.setStatus(ctx, id, model.EnrollmentActive, "activate")
}

func (s *EnrollmentService) Suspend(ctx context.Context, id string) (*model.EnrollmentDetail, error) {
	return s.setStatus(ctx, id, model.EnrollmentSuspended, "suspend")
}

// Complete 管理员直接标记完成，不校验学习进度
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*model.EnrollmentDetail, error) {
	return s.setStatus(ctx, id, model.EnrollmentCompleted, "complete")
}

// Extend 在当前到期时间（没有则为当前时间）基础上顺延若干个自然月
func (s *EnrollmentService) Extend(ctx context.Context, id string, months int) (*model.EnrollmentDetail, error) {
	if months < util.MinExtendMonths || months > util.MaxExtendMonths {
		return nil, util.ValidationError("months must be between %d and %d", util.MinExtendMonths, util.MaxExtendMonths)
	}

	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	base := s.now()
	if enrollment.ExpiresAt != nil {
		base = *enrollment.ExpiresAt
	}
	expiresAt := ExtendExpiry(base, months)
	enrollment.ExpiresAt = &expiresAt

	if err := s.save(ctx, enrollment, "extend"); err != nil {
		return nil, err
	}
	return s.detail(ctx, enrollment, newDetailCache())
}

// ExtendExpiry 月末溢出按 time.AddDate 规则归一化，如 1 月 31 日加一个月为 3 月 2 日（闰年）
func ExtendExpiry(base time.Time, months int) time.Time {
	return base.AddDate(0, months, 0)
}

// Update 部分更新，持久化失败统一返回 BadRequest
func (s *EnrollmentService) Update(ctx context.Context, id string, patch EnrollmentPatch) (*model.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, util.ValidationError("invalid enrollment status %q", *patch.Status)
		}
		enrollment.Status = *patch.Status
	}
	if patch.PaymentConfirmed != nil {
		enrollment.PaymentConfirmed = *patch.PaymentConfirmed
	}
	if patch.ClearExpiresAt {
		enrollment.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		expiresAt := *patch.ExpiresAt
		enrollment.ExpiresAt = &expiresAt
	}

	if err := s.Enrollments.Update(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return nil, util.NotFoundError("enrollment %s not found", id)
		}
		return nil, util.WrapBadRequest(err, "failed to update enrollment")
	}
	monitoring.EnrollmentTransitions.WithLabelValues("update").Inc()
	return s.detail(ctx, enrollment, newDetailCache())
}

// Remove 级联删除报名，之后尽力删除对象存储中的证书文件
func (s *EnrollmentService) Remove(ctx context.Context, id string) (*repository.DeleteResult, error) {
	result, err := s.Enrollments.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return nil, util.NotFoundError("enrollment %s not found", id)
		}
		return nil, fmt.Errorf("delete enrollment %s: %w", id, err)
	}
	monitoring.EnrollmentTransitions.WithLabelValues("remove").Inc()

	if s.Files != nil {
		for _, key := range result.CertificateFiles {
			if err := s.Files.Delete(ctx, key); err != nil {
				logger.Log.Warn("Failed to delete certificate file",
					zap.String("enrollmentId", id),
					zap.String("key", key),
					zap.Error(err))
			}
		}
	}

	logger.Log.Info("Enrollment removed",
		zap.String("enrollmentId", id),
		zap.Int64("completionRecords", result.CompletionRecords),
		zap.Int64("certificates", result.Certificates),
		zap.Int64("paymentReceipts", result.PaymentReceipts))
	return result, nil
}

func (s *EnrollmentService) FindByID(ctx context.Context, id string) (*model.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, enrollment, newDetailCache())
}

func (s *EnrollmentService) FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.EnrollmentDetail, error) {
	enrollment, err := s.Enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return nil, util.NotFoundError("user %d is not enrolled in course %d", userID, courseID)
		}
		return nil, err
	}
	return s.detail(ctx, enrollment, newDetailCache())
}

// FindAll 分页查询，每条记录附带用户、课程与进度
func (s *EnrollmentService) FindAll(ctx context.Context, filter repository.EnrollmentFilter, opts repository.ListOptions) ([]model.EnrollmentDetail, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, util.ValidationError("invalid enrollment status %q", filter.Status)
	}
	if filter.Now.IsZero() {
		filter.Now = s.now()
	}

	enrollments, total, err := s.Enrollments.FindMany(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	cache := newDetailCache()
	details := make([]model.EnrollmentDetail, 0, len(enrollments))
	for i := range enrollments {
		detail, err := s.detail(ctx, &enrollments[i], cache)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, *detail)
	}
	return details, total, nil
}

// FindUserEnrollments 学员自己的报名列表
func (s *EnrollmentService) FindUserEnrollments(ctx context.Context, userID uint, status model.EnrollmentStatus, opts repository.ListOptions) ([]model.EnrollmentDetail, int64, error) {
	return s.FindAll(ctx, repository.EnrollmentFilter{UserID: userID, Status: status}, opts)
}

// GetEnrollmentStats 全局报名统计
func (s *EnrollmentService) GetEnrollmentStats(ctx context.Context) (*model.EnrollmentStats, error) {
	return s.stats(ctx, repository.EnrollmentFilter{})
}

// GetCourseEnrollmentStats 单门课程统计，附带平均完成百分比
func (s *EnrollmentService) GetCourseEnrollmentStats(ctx context.Context, courseID uint) (*model.CourseEnrollmentStats, error) {
	course, err := s.Courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupError(err, repository.ErrCourseNotFound, "course %d not found", courseID)
	}

	filter := repository.EnrollmentFilter{CourseID: courseID}
	stats, err := s.stats(ctx, filter)
	if err != nil {
		return nil, err
	}

	average, err := s.averageProgress(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &model.CourseEnrollmentStats{
		CourseID:        course.ID,
		CourseTitle:     course.Title,
		EnrollmentStats: *stats,
		AverageProgress: average,
	}, nil
}

// Wait 等待在途通知发送完成，优雅退出时调用
func (s *EnrollmentService) Wait() {
	s.inflight.Wait()
}

func (s *EnrollmentService) stats(ctx context.Context, filter repository.EnrollmentFilter) (*model.EnrollmentStats, error) {
	now := s.now()
	filter.Now = now

	byStatus, err := s.Enrollments.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}

	stats := &model.EnrollmentStats{
		Active:    byStatus[model.EnrollmentActive],
		Suspended: byStatus[model.EnrollmentSuspended],
		Completed: byStatus[model.EnrollmentCompleted],
		Expired:   byStatus[model.EnrollmentExpired],
	}
	for _, count := range byStatus {
		stats.Total += count
	}

	confirmed := true
	paid := filter
	paid.PaymentConfirmed = &confirmed
	if stats.PaymentConfirmed, err = s.Enrollments.Count(ctx, paid); err != nil {
		return nil, fmt.Errorf("count paid enrollments: %w", err)
	}
	stats.PaymentPending = stats.Total - stats.PaymentConfirmed

	days := s.Config.ExpiringSoonDays
	if days <= 0 {
		days = 7
	}
	until := now.AddDate(0, 0, days)
	soon := filter
	soon.Status = model.EnrollmentActive
	soon.ExpiresFrom = &now
	soon.ExpiresUntil = &until
	if stats.ExpiringSoon, err = s.Enrollments.Count(ctx, soon); err != nil {
		return nil, fmt.Errorf("count expiring enrollments: %w", err)
	}
	return stats, nil
}

// averageProgress 逐页遍历报名，对各条完成百分比取平均后四舍五入
func (s *EnrollmentService) averageProgress(ctx context.Context, filter repository.EnrollmentFilter) (int, error) {
	var sum, count int
	opts := repository.ListOptions{Page: 1, Limit: util.MaxLimit, SortOrder: "asc"}
	for {
		enrollments, total, err := s.Enrollments.FindMany(ctx, filter, opts)
		if err != nil {
			return 0, err
		}
		for i := range enrollments {
			progress, err := s.Progress.ForEnrollment(ctx, &enrollments[i])
			if err != nil {
				return 0, err
			}
			sum += progress.CompletionPercentage
			count++
		}
		if len(enrollments) == 0 || int64(opts.Page*opts.Limit) >= total {
			break
		}
		opts.Page++
	}
	if count == 0 {
		return 0, nil
	}
	return int(math.Round(float64(sum) / float64(count))), nil
}

func (s *EnrollmentService) setStatus(ctx context.Context, id string, status model.EnrollmentStatus, transition string) (*model.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollment.Status = status
	if err := s.save(ctx, enrollment, transition); err != nil {
		return nil, err
	}
	return s.detail(ctx, enrollment, newDetailCache())
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*model.Enrollment, error) {
	enrollment, err := s.Enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return nil, util.NotFoundError("enrollment %s not found", id)
		}
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) save(ctx context.Context, enrollment *model.Enrollment, transition string) error {
	if err := s.Enrollments.Update(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return util.NotFoundError("enrollment %s not found", enrollment.ID)
		}
		return fmt.Errorf("%s enrollment %s: %w", transition, enrollment.ID, err)
	}
	monitoring.EnrollmentTransitions.WithLabelValues(transition).Inc()
	logger.Log.Info("Enrollment updated",
		zap.String("enrollmentId", enrollment.ID),
		zap.String("transition", transition),
		zap.String("status", string(enrollment.Status)),
		zap.Bool("paymentConfirmed", enrollment.PaymentConfirmed))
	return nil
}

// notifyEnrollment 在独立协程中发送通知，失败只记录日志
func (s *EnrollmentService) notifyEnrollment(userID uint, course *model.Course) {
	if s.Notifier == nil {
		return
	}
	notification := EnrollmentNotification{CourseTitle: course.Title, CourseID: course.ID}
	timeout := s.Config.NotifyTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				monitoring.NotificationFailures.Inc()
				logger.Log.Error("Enrollment notification panicked",
					zap.Uint("userId", userID),
					zap.Any("panic", r))
			}
		}()

		// 请求上下文可能已结束，使用独立的超时上下文
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.Notifier.NotifyEnrollment(ctx, userID, notification); err != nil {
			monitoring.NotificationFailures.Inc()
			logger.Log.Warn("Failed to send enrollment notification",
				zap.Uint("userId", userID),
				zap.Uint("courseId", notification.CourseID),
				zap.Error(err))
		}
	}()
}

// detailCache 列表查询时复用用户和课程的查询结果
type detailCache struct {
	users   map[uint]*model.User
	courses map[uint]*model.Course
}

func newDetailCache() *detailCache {
	return &detailCache{
		users:   make(map[uint]*model.User),
		courses: make(map[uint]*model.Course),
	}
}

func (s *EnrollmentService) detail(ctx context.Context, enrollment *model.Enrollment, cache *detailCache) (*model.EnrollmentDetail, error) {
	user, err := s.cachedUser(ctx, enrollment.UserID, cache)
	if err != nil {
		return nil, err
	}
	actor, err := s.cachedUser(ctx, enrollment.EnrolledByID, cache)
	if err != nil {
		return nil, err
	}
	course, err := s.cachedCourse(ctx, enrollment.CourseID, cache)
	if err != nil {
		return nil, err
	}
	progress, err := s.Progress.ForEnrollment(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	return &model.EnrollmentDetail{
		Enrollment: *enrollment,
		User:       user.Summary(),
		Course:     course.Summary(),
		EnrolledBy: actor.Summary(),
		Progress:   progress,
	}, nil
}

// cachedUser 用户已被删除时返回 nil，不影响报名记录的读取
func (s *EnrollmentService) cachedUser(ctx context.Context, id uint, cache *detailCache) (*model.User, error) {
	if user, ok := cache.users[id]; ok {
		return user, nil
	}
	user, err := s.Users.FindByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	cache.users[id] = user
	return user, nil
}

func (s *EnrollmentService) cachedCourse(ctx context.Context, id uint, cache *detailCache) (*model.Course, error) {
	if course, ok := cache.courses[id]; ok {
		return course, nil
	}
	course, err := s.Courses.FindByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrCourseNotFound) {
		return nil, err
	}
	cache.courses[id] = course
	return course, nil
}

// lookupError 把仓储层的 not found 转为 NotFound 错误，其余错误原样返回
func lookupError(err, notFound error, format string, args ...any) error {
	if errors.Is(err, notFound) {
		return util.NotFoundError(format, args...)
	}
	return err
}
