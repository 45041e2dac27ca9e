package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSweeper(env *testEnv, locker Locker) *ExpirationSweeper {
	sweeper := NewExpirationSweeper(env.store, locker, time.Minute)
	sweeper.Now = func() time.Time { return env.now }
	return sweeper
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lapsedActive := env.seed(t, annID, goCourseID, model.EnrollmentActive, true, timePtr(testNow.Add(-48*time.Hour)))
	lapsedSuspended := env.seed(t, bobID, goCourseID, model.EnrollmentSuspended, false, timePtr(testNow.Add(-time.Hour)))
	env.seed(t, cidID, goCourseID, model.EnrollmentExpired, true, timePtr(testNow.Add(-72*time.Hour)))
	env.seed(t, annID, rustCourseID, model.EnrollmentActive, true, timePtr(testNow.Add(time.Hour)))
	env.seed(t, bobID, rustCourseID, model.EnrollmentActive, true, nil)

	sweeper := newTestSweeper(env, nil)

	result, err := sweeper.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	assert.False(t, result.Skipped)
	require.Len(t, result.Details, 2)
	assert.Equal(t, lapsedActive.ID, result.Details[0].ID)
	assert.Equal(t, annID, result.Details[0].UserID)
	assert.Equal(t, goCourseID, result.Details[0].CourseID)
	assert.True(t, result.Details[0].ExpiredAt.Equal(*lapsedActive.ExpiresAt))
	assert.Equal(t, lapsedSuspended.ID, result.Details[1].ID)

	stored, err := env.store.FindByID(ctx, lapsedSuspended.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentExpired, stored.Status)

	// 第二次执行没有新的过期记录
	result, err = sweeper.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Updated)
	assert.NotNil(t, result.Details)

	env.now = testNow.Add(2 * time.Hour)
	result, err = sweeper.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
}

func TestSweepExpiredConcurrentRunsMarkOnce(t *testing.T) {
	env := newTestEnv(t)
	for _, userID := range []uint{annID, bobID, cidID} {
		env.seed(t, userID, goCourseID, model.EnrollmentActive, true, timePtr(testNow.Add(-time.Minute)))
	}
	sweeper := newTestSweeper(env, nil)

	var mu sync.Mutex
	var wg sync.WaitGroup
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := sweeper.SweepExpired(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			total += result.Updated
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, total)
}

func TestSweepExpiredLocking(t *testing.T) {
	t.Run("lock held elsewhere", func(t *testing.T) {
		env := newTestEnv(t)
		lapsed := env.seed(t, annID, goCourseID, model.EnrollmentActive, true, timePtr(testNow.Add(-time.Hour)))
		locker := &fakeLocker{held: true}

		result, err := newTestSweeper(env, locker).SweepExpired(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Zero(t, result.Updated)

		stored, err := env.store.FindByID(context.Background(), lapsed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.EnrollmentActive, stored.Status)
	})

	t.Run("lock acquired and released", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, annID, goCourseID, model.EnrollmentActive, true, timePtr(testNow.Add(-time.Hour)))
		locker := &fakeLocker{}

		result, err := newTestSweeper(env, locker).SweepExpired(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 1, locker.acquired)
		assert.Equal(t, 1, locker.released)
		assert.False(t, locker.held)
	})

	t.Run("lock service unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, annID, goCourseID, model.EnrollmentActive, true, timePtr(testNow.Add(-time.Hour)))
		locker := &fakeLocker{err: errors.New("redis: connection refused")}

		result, err := newTestSweeper(env, locker).SweepExpired(context.Background())
		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.Equal(t, 1, result.Updated)
	})
}

func TestExpirationSweeperRun(t *testing.T) {
	env := newTestEnv(t)
	lapsed := env.seed(t, annID, goCourseID, model.EnrollmentActive, true, timePtr(testNow.Add(-time.Hour)))

	newTestSweeper(env, &fakeLocker{}).Run()

	stored, err := env.store.FindByID(context.Background(), lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentExpired, stored.Status)
}
