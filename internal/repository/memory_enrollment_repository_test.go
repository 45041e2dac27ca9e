package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEnrollmentRepositoryConcurrentCreate(t *testing.T) {
	repo := NewMemoryEnrollmentRepository()
	ctx := context.Background()

	var created, duplicates int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, newEnrollment(1, 1, model.EnrollmentActive, false, nil))
			switch err {
			case nil:
				atomic.AddInt32(&created, 1)
			case ErrDuplicateEnrollment:
				atomic.AddInt32(&duplicates, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(19), duplicates)
}

func TestMemoryEnrollmentRepositoryFilters(t *testing.T) {
	repo := NewMemoryEnrollmentRepository()
	repo.SearchText = func(e model.Enrollment) string {
		return "user-" + strconv.Itoa(int(e.UserID)) + " course-" + strconv.Itoa(int(e.CourseID))
	}
	ctx := context.Background()

	active := newEnrollment(1, 10, model.EnrollmentActive, true, at(baseTime.Add(time.Hour)))
	lapsed := newEnrollment(2, 10, model.EnrollmentActive, false, at(baseTime.Add(-time.Hour)))
	marked := newEnrollment(3, 20, model.EnrollmentExpired, false, nil)
	for _, e := range []*model.Enrollment{active, lapsed, marked} {
		require.NoError(t, repo.Create(ctx, e))
	}

	yes, no := true, false
	count := func(filter EnrollmentFilter) int64 {
		filter.Now = baseTime
		n, err := repo.Count(ctx, filter)
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, int64(2), count(EnrollmentFilter{Expired: &yes}))
	assert.Equal(t, int64(1), count(EnrollmentFilter{Expired: &no}))
	assert.Equal(t, int64(1), count(EnrollmentFilter{PaymentConfirmed: &yes}))
	assert.Equal(t, int64(2), count(EnrollmentFilter{Search: "course-10"}))
	assert.Equal(t, int64(1), count(EnrollmentFilter{Search: "course-10", Expired: &yes}))
	assert.Equal(t, int64(1), count(EnrollmentFilter{
		ExpiresFrom:  at(baseTime),
		ExpiresUntil: at(baseTime.AddDate(0, 0, 7)),
	}))
}

func TestMemoryEnrollmentRepositoryDeleteCascades(t *testing.T) {
	repo := NewMemoryEnrollmentRepository()
	ctx := context.Background()

	enrollment := newEnrollment(1, 1, model.EnrollmentActive, true, nil)
	require.NoError(t, repo.Create(ctx, enrollment))
	require.NoError(t, repo.MarkLessonCompleted(ctx, enrollment.ID, 1, true))
	require.NoError(t, repo.MarkLessonCompleted(ctx, enrollment.ID, 2, false))
	repo.AddCertificate(enrollment.ID, "certs/1.pdf")
	repo.AddPaymentReceipt(enrollment.ID, 10, "r-1")

	completed, err := repo.CountCompleted(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)

	result, err := repo.Delete(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.CompletionRecords)
	assert.Equal(t, int64(1), result.Certificates)
	assert.Equal(t, int64(1), result.PaymentReceipts)
	assert.Equal(t, []string{"certs/1.pdf"}, result.CertificateFiles)

	completions, certificates, receipts := repo.DependentCounts(enrollment.ID)
	assert.Zero(t, completions)
	assert.Zero(t, certificates)
	assert.Zero(t, receipts)

	_, err = repo.FindByID(ctx, enrollment.ID)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestMemoryEnrollmentRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryEnrollmentRepository()
	ctx := context.Background()

	enrollment := newEnrollment(1, 1, model.EnrollmentActive, true, at(baseTime))
	require.NoError(t, repo.Create(ctx, enrollment))

	found, err := repo.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	found.Status = model.EnrollmentSuspended
	*found.ExpiresAt = baseTime.AddDate(1, 0, 0)

	again, err := repo.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, again.Status)
	assert.True(t, again.ExpiresAt.Equal(baseTime))
}
