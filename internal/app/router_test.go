package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/database"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	admin   *model.User
	teacher *model.User
	ann     *model.User
	bob     *model.User
	course  *model.Course
	draft   *model.Course
	lessons []model.Lesson
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: testSecret},
		Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		Enrollment: config.EnrollmentConfig{
			SweepLockTTLSeconds:  60,
			NotifyTimeoutSeconds: 1,
			ExpiringSoonDays:     7,
		},
	}

	a := &App{Config: cfg, DB: db}
	repos := a.initRepositories(db)
	s := a.initServices(repos, cfg, nil)
	c := a.initControllers(s, db, nil)
	t.Cleanup(s.enrollment.Wait)

	router := gin.New()
	a.setupMiddlewares(router, cfg)
	a.registerRoutes(router, c, cfg)

	srv := &testServer{router: router, db: db}
	srv.admin = srv.seedUser(t, "Admin", "admin@example.com", model.Admin)
	srv.teacher = srv.seedUser(t, "Teacher", "teacher@example.com", model.Teacher)
	srv.ann = srv.seedUser(t, "Ann", "ann@example.com", model.Student)
	srv.bob = srv.seedUser(t, "Bob", "bob@example.com", model.Student)

	srv.course = &model.Course{Title: "Go", Status: model.CoursePublished}
	require.NoError(t, db.Create(srv.course).Error)
	module := &model.CourseModule{CourseID: srv.course.ID, Title: "Basics"}
	require.NoError(t, db.Create(module).Error)
	for i := 1; i <= 4; i++ {
		lesson := model.Lesson{ModuleID: module.ID, Title: fmt.Sprintf("lesson %d", i), Order: i}
		require.NoError(t, db.Create(&lesson).Error)
		srv.lessons = append(srv.lessons, lesson)
	}
	srv.draft = &model.Course{Title: "Draft", Status: model.CourseDraft}
	require.NoError(t, db.Create(srv.draft).Error)

	return srv
}

func (s *testServer) seedUser(t *testing.T, name, email string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: email, Password: "x", Role: role}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

func (s *testServer) do(t *testing.T, user *model.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := util.GenerateJWT(user, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data), w.Body.String())
	}
	return resp
}

func (s *testServer) enroll(t *testing.T, user *model.User, course *model.Course) model.EnrollmentDetail {
	t.Helper()
	w := s.do(t, s.admin, http.MethodPost, "/api/admin/enrollments", gin.H{
		"userId":   user.ID,
		"courseId": course.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var detail model.EnrollmentDetail
	decode(t, w, &detail)
	return detail
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, nil, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decode(t, w, &data)
	assert.Equal(t, "ok", data.Status)
	assert.Equal(t, "up", data.Components["database"])
}

func TestAuthAndRoles(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, nil, http.MethodGet, "/api/enrollments/my", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, srv.ann, http.MethodGet, "/api/admin/enrollments", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, srv.teacher, http.MethodGet, "/api/admin/enrollments", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, srv.admin, http.MethodGet, "/api/admin/enrollments/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateEnrollmentEndpoint(t *testing.T) {
	srv := newTestServer(t)

	detail := srv.enroll(t, srv.ann, srv.course)
	assert.Equal(t, model.EnrollmentActive, detail.Status)
	assert.Equal(t, srv.admin.ID, detail.EnrolledByID)
	assert.Equal(t, 4, detail.Progress.TotalLessons)

	w := srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments", gin.H{
		"userId":   srv.ann.ID,
		"courseId": srv.course.ID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user is already enrolled in this course", decode(t, w, nil).Message)

	w = srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments", gin.H{
		"userId":   9999,
		"courseId": srv.course.ID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments", gin.H{"courseId": srv.course.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestManualAndBulkEnrollmentEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments/manual", gin.H{
		"userEmail": "ANN@example.com",
		"courseId":  srv.course.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments/manual", gin.H{
		"userEmail": "not-an-email",
		"courseId":  srv.course.ID,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments/bulk", gin.H{
		"courseId": srv.course.ID,
		"users": []gin.H{
			{"userEmail": "ann@example.com"},
			{"userEmail": "bob@example.com"},
			{"userEmail": "ghost@example.com"},
		},
		"paymentConfirmed": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Successful []model.EnrollmentDetail `json:"successful"`
		Failed     []struct {
			Email string `json:"email"`
			Error string `json:"error"`
		} `json:"failed"`
		Summary struct {
			Total      int `json:"total"`
			Successful int `json:"successful"`
			Failed     int `json:"failed"`
		} `json:"summary"`
	}
	decode(t, w, &result)
	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Successful)
	assert.Equal(t, 2, result.Summary.Failed)
	assert.Equal(t, srv.bob.ID, result.Successful[0].UserID)
	assert.Equal(t, "ann@example.com", result.Failed[0].Email)
	assert.Equal(t, "ghost@example.com", result.Failed[1].Email)

	w = srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments/bulk", gin.H{
		"courseId": 9999,
		"users":    []gin.H{{"userEmail": "ann@example.com"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentTransitionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	detail := srv.enroll(t, srv.ann, srv.course)
	base := "/api/admin/enrollments/" + detail.ID

	w := srv.do(t, srv.admin, http.MethodPost, base+"/confirm-payment", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = srv.do(t, srv.admin, http.MethodPost, base+"/confirm-payment", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payment already confirmed", decode(t, w, nil).Message)

	w = srv.do(t, srv.admin, http.MethodPost, base+"/suspend", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.EnrollmentDetail
	decode(t, w, &updated)
	assert.Equal(t, model.EnrollmentSuspended, updated.Status)

	w = srv.do(t, srv.admin, http.MethodPost, base+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, srv.admin, http.MethodPost, base+"/extend", gin.H{"months": 13})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = srv.do(t, srv.admin, http.MethodPost, base+"/extend", gin.H{"months": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = srv.do(t, srv.admin, http.MethodPost, base+"/extend", gin.H{"months": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &updated)
	require.NotNil(t, updated.ExpiresAt)

	w = srv.do(t, srv.admin, http.MethodPatch, base, gin.H{"status": "PAUSED"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = srv.do(t, srv.admin, http.MethodPatch, base, gin.H{"clearExpiresAt": true})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &updated)
	assert.Nil(t, updated.ExpiresAt)

	w = srv.do(t, srv.admin, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &updated)
	assert.Equal(t, model.EnrollmentCompleted, updated.Status)

	w = srv.do(t, srv.admin, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = srv.do(t, srv.admin, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = srv.do(t, srv.admin, http.MethodPost, base+"/activate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccessEndpoints(t *testing.T) {
	srv := newTestServer(t)
	detail := srv.enroll(t, srv.ann, srv.course)
	require.NoError(t, srv.db.Create(&model.LessonProgress{
		EnrollmentID: detail.ID,
		LessonID:     srv.lessons[0].ID,
		CompletedAt:  func() *time.Time { now := time.Now(); return &now }(),
	}).Error)

	coursePath := fmt.Sprintf("/api/courses/%d", srv.course.ID)

	w := srv.do(t, srv.ann, http.MethodGet, coursePath+"/access", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var access struct {
		HasAccess bool                  `json:"hasAccess"`
		Reason    string                `json:"reason"`
		Lesson    *model.LessonLocation `json:"lesson"`
	}
	resp := decode(t, w, &access)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, access.HasAccess)
	assert.Equal(t, "access granted", access.Reason)

	w = srv.do(t, srv.bob, http.MethodGet, coursePath+"/access", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &access)
	assert.False(t, access.HasAccess)
	assert.Equal(t, "not enrolled", access.Reason)

	w = srv.do(t, srv.ann, http.MethodGet, fmt.Sprintf("%s/lessons/%d/access", coursePath, srv.lessons[1].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &access)
	assert.True(t, access.HasAccess)
	require.NotNil(t, access.Lesson)
	assert.Equal(t, "Basics", access.Lesson.ModuleTitle)

	w = srv.do(t, srv.ann, http.MethodGet, coursePath+"/lessons/9999/access", nil)
	require.Equal(t, http.StatusOK, w.Code)
	access.Lesson = nil
	decode(t, w, &access)
	assert.False(t, access.HasAccess)
	assert.Equal(t, "lesson not found in this course", access.Reason)

	w = srv.do(t, srv.ann, http.MethodGet, coursePath+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var progress model.ProgressSummary
	decode(t, w, &progress)
	assert.Equal(t, model.ProgressSummary{CompletedLessons: 1, TotalLessons: 4, CompletionPercentage: 25}, progress)

	// 教师可以查看指定学员，学员的 userId 参数被忽略
	w = srv.do(t, srv.teacher, http.MethodGet, fmt.Sprintf("%s/progress?userId=%d", coursePath, srv.ann.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &progress)
	assert.Equal(t, 1, progress.CompletedLessons)

	w = srv.do(t, srv.bob, http.MethodGet, fmt.Sprintf("%s/progress?userId=%d", coursePath, srv.ann.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &progress)
	assert.Equal(t, model.ProgressSummary{}, progress)

	w = srv.do(t, srv.ann, http.MethodGet, "/api/courses/abc/access", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListAndStatsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.enroll(t, srv.ann, srv.course)
	srv.enroll(t, srv.bob, srv.course)
	srv.enroll(t, srv.ann, srv.draft)

	w := srv.do(t, srv.admin, http.MethodGet, fmt.Sprintf("/api/admin/enrollments?courseId=%d&limit=1", srv.course.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		List  []model.EnrollmentDetail `json:"list"`
		Total int64                    `json:"total"`
		Page  int                      `json:"page"`
		Limit int                      `json:"limit"`
	}
	decode(t, w, &page)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.List, 1)
	assert.Equal(t, 1, page.Limit)

	w = srv.do(t, srv.admin, http.MethodGet, "/api/admin/enrollments?paymentConfirmed=maybe", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = srv.do(t, srv.ann, http.MethodGet, "/api/enrollments/my", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Equal(t, int64(2), page.Total)

	w = srv.do(t, srv.admin, http.MethodGet, "/api/admin/enrollments/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.EnrollmentStats
	decode(t, w, &stats)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.Active)
	assert.Equal(t, int64(3), stats.PaymentPending)

	w = srv.do(t, srv.admin, http.MethodGet, fmt.Sprintf("/api/admin/courses/%d/enrollment-stats", srv.course.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var courseStats model.CourseEnrollmentStats
	decode(t, w, &courseStats)
	assert.Equal(t, "Go", courseStats.CourseTitle)
	assert.Equal(t, int64(2), courseStats.Total)

	w = srv.do(t, srv.admin, http.MethodGet, "/api/admin/courses/9999/enrollment-stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanupExpiredEndpoint(t *testing.T) {
	srv := newTestServer(t)
	detail := srv.enroll(t, srv.ann, srv.course)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, srv.db.Model(&model.Enrollment{}).Where("id = ?", detail.ID).Update("expires_at", past).Error)

	w := srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments/cleanup-expired", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Updated int `json:"updated"`
		Details []struct {
			ID string `json:"id"`
		} `json:"details"`
	}
	decode(t, w, &result)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Details, 1)
	assert.Equal(t, detail.ID, result.Details[0].ID)

	w = srv.do(t, srv.admin, http.MethodPost, "/api/admin/enrollments/cleanup-expired", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &result)
	assert.Zero(t, result.Updated)

	w = srv.do(t, srv.ann, http.MethodGet, fmt.Sprintf("/api/courses/%d/access", srv.course.ID), nil)
	var access struct {
		HasAccess bool   `json:"hasAccess"`
		Reason    string `json:"reason"`
	}
	decode(t, w, &access)
	assert.False(t, access.HasAccess)
	assert.Equal(t, "expired", access.Reason)
}
