package service

import (
	"context"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SweepLockKey 多实例部署时清理任务的互斥锁
const SweepLockKey = "enrollment:sweep:lock"

// SweepResult 一次过期清理的结果
type SweepResult struct {
	Updated int                       `json:"updated"`
	Details []model.ExpiredEnrollment `json:"details"`
	Skipped bool                      `json:"skipped,omitempty"`
}

// ExpirationSweeper 把已过期但状态未更新的报名标记为 EXPIRED
type ExpirationSweeper struct {
	Enrollments EnrollmentStore
	Locker      Locker
	LockTTL     time.Duration
	Timeout     time.Duration
	Now         func() time.Time
}

func NewExpirationSweeper(enrollments EnrollmentStore, locker Locker, lockTTL time.Duration) *ExpirationSweeper {
	return &ExpirationSweeper{
		Enrollments: enrollments,
		Locker:      locker,
		LockTTL:     lockTTL,
		Timeout:     5 * time.Minute,
		Now:         time.Now,
	}
}

// SweepExpired 可重复执行；并发执行时每条记录只会被标记一次
func (s *ExpirationSweeper) SweepExpired(ctx context.Context) (*SweepResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "enrollment.sweep")
	defer span.End()

	if s.Locker != nil {
		release, acquired, err := s.Locker.TryLock(ctx, SweepLockKey, s.lockTTL())
		switch {
		case err != nil:
			// 锁服务不可用时仍执行，逐条条件更新保证不会重复标记
			logger.Log.Warn("Sweep lock unavailable, continuing without it", zap.Error(err))
		case !acquired:
			logger.Log.Info("Expiration sweep skipped, lock held by another instance")
			span.SetAttributes(attribute.Bool("sweep.skipped", true))
			return &SweepResult{Details: []model.ExpiredEnrollment{}, Skipped: true}, nil
		default:
			defer release()
		}
	}

	expired, err := s.Enrollments.ExpireLapsed(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("expire lapsed enrollments: %w", err)
	}
	if expired == nil {
		expired = []model.ExpiredEnrollment{}
	}

	monitoring.ExpiredEnrollments.Add(float64(len(expired)))
	span.SetAttributes(attribute.Int("sweep.updated", len(expired)))
	logger.Log.Info("Expiration sweep finished", zap.Int("updated", len(expired)))

	return &SweepResult{Updated: len(expired), Details: expired}, nil
}

// Run 实现 cron.Job，由定时任务调用
func (s *ExpirationSweeper) Run() {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := s.SweepExpired(ctx); err != nil {
		logger.Log.Error("Scheduled expiration sweep failed", zap.Error(err))
	}
}

func (s *ExpirationSweeper) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *ExpirationSweeper) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 5 * time.Minute
	}
	return s.LockTTL
}
