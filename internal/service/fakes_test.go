package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	byID map[uint]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: make(map[uint]*model.User)}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(ctx context.Context, id uint) (*model.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, user := range f.byID {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type fakeCatalog struct {
	courses   map[uint]*model.Course
	lessons   map[uint]int64
	locations map[[2]uint]*model.LessonLocation
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		courses:   make(map[uint]*model.Course),
		lessons:   make(map[uint]int64),
		locations: make(map[[2]uint]*model.LessonLocation),
	}
}

func (f *fakeCatalog) addCourse(id uint, title string, status model.CourseStatus, lessons int64) {
	course := &model.Course{Title: title, Status: status}
	course.ID = id
	f.courses[id] = course
	f.lessons[id] = lessons
}

func (f *fakeCatalog) addLesson(courseID uint, location model.LessonLocation) {
	f.locations[[2]uint{courseID, location.LessonID}] = &location
}

func (f *fakeCatalog) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	course, ok := f.courses[id]
	if !ok {
		return nil, repository.ErrCourseNotFound
	}
	copied := *course
	return &copied, nil
}

func (f *fakeCatalog) CountLessons(ctx context.Context, courseID uint) (int64, error) {
	return f.lessons[courseID], nil
}

func (f *fakeCatalog) FindLessonInCourse(ctx context.Context, courseID, lessonID uint) (*model.LessonLocation, error) {
	location, ok := f.locations[[2]uint{courseID, lessonID}]
	if !ok {
		return nil, repository.ErrLessonNotFound
	}
	copied := *location
	return &copied, nil
}

type notifyCall struct {
	userID       uint
	notification EnrollmentNotification
	hasDeadline  bool
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
	panic bool
}

func (n *recordingNotifier) NotifyEnrollment(ctx context.Context, userID uint, notification EnrollmentNotification) error {
	_, hasDeadline := ctx.Deadline()
	n.mu.Lock()
	n.calls = append(n.calls, notifyCall{userID: userID, notification: notification, hasDeadline: hasDeadline})
	n.mu.Unlock()
	if n.panic {
		panic("notifier exploded")
	}
	return n.err
}

func (n *recordingNotifier) snapshot() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

type fakeFiles struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeFiles) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return f.err
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	acquired int
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	l.acquired++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.released++
	}, true, nil
}

// failingUpdateStore 写入失败的存储，用于验证错误包装
type failingUpdateStore struct {
	*repository.MemoryEnrollmentRepository
}

var errStoreUnavailable = errors.New("store unavailable")

func (s failingUpdateStore) Update(ctx context.Context, enrollment *model.Enrollment) error {
	return errStoreUnavailable
}

const (
	adminID uint = 1
	annID   uint = 2
	bobID   uint = 3
	cidID   uint = 4

	goCourseID    uint = 10
	draftCourseID uint = 20
	rustCourseID  uint = 30
)

var testNow = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store       *repository.MemoryEnrollmentRepository
	users       *fakeUsers
	catalog     *fakeCatalog
	notifier    *recordingNotifier
	files       *fakeFiles
	progress    *ProgressService
	access      *AccessService
	enrollments *EnrollmentService
	bulk        *BulkEnrollmentService
	now         time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	user := func(id uint, name, email string, role model.UserRole) *model.User {
		u := &model.User{Name: name, Email: email, Role: role}
		u.ID = id
		return u
	}
	users := newFakeUsers(
		user(adminID, "Admin", "admin@example.com", model.Admin),
		user(annID, "Ann", "ann@example.com", model.Student),
		user(bobID, "Bob", "bob@example.com", model.Student),
		user(cidID, "Cid", "cid@example.com", model.Student),
	)

	catalog := newFakeCatalog()
	catalog.addCourse(goCourseID, "Go", model.CoursePublished, 4)
	catalog.addCourse(draftCourseID, "Draft", model.CourseDraft, 2)
	catalog.addCourse(rustCourseID, "Rust", model.CoursePublished, 3)

	env := &testEnv{
		store:    repository.NewMemoryEnrollmentRepository(),
		users:    users,
		catalog:  catalog,
		notifier: &recordingNotifier{},
		files:    &fakeFiles{},
		now:      testNow,
	}
	clock := func() time.Time { return env.now }

	env.progress = NewProgressService(env.store, env.store, catalog)
	env.access = NewAccessService(env.store, catalog)
	env.access.Now = clock
	env.enrollments = NewEnrollmentService(env.store, users, catalog, env.progress, env.notifier, env.files, config.EnrollmentConfig{
		NotifyTimeoutSeconds: 1,
		ExpiringSoonDays:     7,
	})
	env.enrollments.Now = clock
	env.bulk = NewBulkEnrollmentService(env.enrollments, catalog)

	t.Cleanup(env.enrollments.Wait)
	return env
}

// seed 直接写入存储，绕过服务层校验
func (e *testEnv) seed(t *testing.T, userID, courseID uint, status model.EnrollmentStatus, paid bool, expiresAt *time.Time) *model.Enrollment {
	t.Helper()
	enrollment := &model.Enrollment{
		UserID:           userID,
		CourseID:         courseID,
		EnrolledByID:     adminID,
		Status:           status,
		PaymentConfirmed: paid,
		EnrolledAt:       e.now,
		ExpiresAt:        expiresAt,
	}
	require.NoError(t, e.store.Create(context.Background(), enrollment))
	return enrollment
}

func timePtr(t time.Time) *time.Time { return &t }
