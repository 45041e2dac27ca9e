package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryEnrollmentRepository 内存实现，同时充当完成记录账本，用于测试和本地调试
type MemoryEnrollmentRepository struct {
	mu           sync.RWMutex
	enrollments  map[string]model.Enrollment
	completions  map[string]map[uint]*time.Time
	certificates map[string][]model.Certificate
	receipts     map[string][]model.PaymentReceipt

	// SearchText 返回参与 Search 匹配的文本，为空时只匹配用户和课程 ID
	SearchText func(e model.Enrollment) string
}

func NewMemoryEnrollmentRepository() *MemoryEnrollmentRepository {
	return &MemoryEnrollmentRepository{
		enrollments:  make(map[string]model.Enrollment),
		completions:  make(map[string]map[uint]*time.Time),
		certificates: make(map[string][]model.Certificate),
		receipts:     make(map[string][]model.PaymentReceipt),
	}
}

func (r *MemoryEnrollmentRepository) Create(ctx context.Context, enrollment *model.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.enrollments {
		if existing.UserID == enrollment.UserID && existing.CourseID == enrollment.CourseID {
			return ErrDuplicateEnrollment
		}
	}

	if enrollment.ID == "" {
		enrollment.ID = model.GenerateUUID()
	}
	now := time.Now()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = model.EnrollmentActive
	}
	r.enrollments[enrollment.ID] = cloneEnrollment(*enrollment)
	return nil
}

func (r *MemoryEnrollmentRepository) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enrollment, ok := r.enrollments[id]
	if !ok {
		return nil, ErrEnrollmentNotFound
	}
	found := cloneEnrollment(enrollment)
	return &found, nil
}

func (r *MemoryEnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, enrollment := range r.enrollments {
		if enrollment.UserID == userID && enrollment.CourseID == courseID {
			found := cloneEnrollment(enrollment)
			return &found, nil
		}
	}
	return nil, ErrEnrollmentNotFound
}

func (r *MemoryEnrollmentRepository) FindMany(ctx context.Context, filter EnrollmentFilter, opts ListOptions) ([]model.Enrollment, int64, error) {
	opts = opts.Normalize()

	r.mu.RLock()
	matched := r.match(filter)
	r.mu.RUnlock()

	sortEnrollments(matched, opts)

	total := int64(len(matched))
	start := opts.Offset()
	if start >= len(matched) {
		return []model.Enrollment{}, total, nil
	}
	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *MemoryEnrollmentRepository) Count(ctx context.Context, filter EnrollmentFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.match(filter))), nil
}

func (r *MemoryEnrollmentRepository) CountByStatus(ctx context.Context, filter EnrollmentFilter) (map[model.EnrollmentStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[model.EnrollmentStatus]int64)
	for _, enrollment := range r.match(filter) {
		counts[enrollment.Status]++
	}
	return counts, nil
}

func (r *MemoryEnrollmentRepository) Update(ctx context.Context, enrollment *model.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.enrollments[enrollment.ID]
	if !ok {
		return ErrEnrollmentNotFound
	}
	existing.Status = enrollment.Status
	existing.PaymentConfirmed = enrollment.PaymentConfirmed
	existing.ExpiresAt = copyTime(enrollment.ExpiresAt)
	existing.UpdatedAt = time.Now()
	enrollment.UpdatedAt = existing.UpdatedAt
	r.enrollments[enrollment.ID] = existing
	return nil
}

func (r *MemoryEnrollmentRepository) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.enrollments[id]; !ok {
		return nil, ErrEnrollmentNotFound
	}

	result := &DeleteResult{
		CompletionRecords: int64(len(r.completions[id])),
		Certificates:      int64(len(r.certificates[id])),
		PaymentReceipts:   int64(len(r.receipts[id])),
	}
	for _, certificate := range r.certificates[id] {
		if certificate.FileKey != "" {
			result.CertificateFiles = append(result.CertificateFiles, certificate.FileKey)
		}
	}

	delete(r.completions, id)
	delete(r.certificates, id)
	delete(r.receipts, id)
	delete(r.enrollments, id)
	return result, nil
}

func (r *MemoryEnrollmentRepository) ExpireLapsed(ctx context.Context, now time.Time) ([]model.ExpiredEnrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := []model.ExpiredEnrollment{}
	for id, enrollment := range r.enrollments {
		if enrollment.Status == model.EnrollmentExpired || !enrollment.IsExpired(now) {
			continue
		}
		enrollment.Status = model.EnrollmentExpired
		enrollment.UpdatedAt = now
		r.enrollments[id] = enrollment
		expired = append(expired, model.ExpiredEnrollment{
			ID:        enrollment.ID,
			UserID:    enrollment.UserID,
			CourseID:  enrollment.CourseID,
			ExpiredAt: *enrollment.ExpiresAt,
		})
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiredAt.Before(expired[j].ExpiredAt)
	})
	return expired, nil
}

// CountCompleted 统计已完成（completed_at 非空）的课时数
func (r *MemoryEnrollmentRepository) CountCompleted(ctx context.Context, enrollmentID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, completedAt := range r.completions[enrollmentID] {
		if completedAt != nil {
			total++
		}
	}
	return total, nil
}

// MarkLessonCompleted 记录或撤销课时完成状态
func (r *MemoryEnrollmentRepository) MarkLessonCompleted(ctx context.Context, enrollmentID string, lessonID uint, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.enrollments[enrollmentID]; !ok {
		return ErrEnrollmentNotFound
	}
	if r.completions[enrollmentID] == nil {
		r.completions[enrollmentID] = make(map[uint]*time.Time)
	}
	var completedAt *time.Time
	if completed {
		now := time.Now()
		completedAt = &now
	}
	r.completions[enrollmentID][lessonID] = completedAt
	return nil
}

func (r *MemoryEnrollmentRepository) AddCertificate(enrollmentID, fileKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certificates[enrollmentID] = append(r.certificates[enrollmentID], model.Certificate{
		UUIDBase:     model.UUIDBase{ID: model.GenerateUUID()},
		EnrollmentID: enrollmentID,
		FileKey:      fileKey,
		IssuedAt:     time.Now(),
	})
}

func (r *MemoryEnrollmentRepository) AddPaymentReceipt(enrollmentID string, amount float64, reference string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[enrollmentID] = append(r.receipts[enrollmentID], model.PaymentReceipt{
		EnrollmentID: enrollmentID,
		Amount:       amount,
		Reference:    reference,
		PaidAt:       time.Now(),
	})
}

// DependentCounts 返回某条报名的完成记录、证书、缴费凭证数量
func (r *MemoryEnrollmentRepository) DependentCounts(enrollmentID string) (completions, certificates, receipts int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.completions[enrollmentID]), len(r.certificates[enrollmentID]), len(r.receipts[enrollmentID])
}

// match 调用方需持有读锁
func (r *MemoryEnrollmentRepository) match(filter EnrollmentFilter) []model.Enrollment {
	now := filter.now()
	search := strings.ToLower(filter.Search)

	matched := []model.Enrollment{}
	for _, enrollment := range r.enrollments {
		if filter.UserID != 0 && enrollment.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != 0 && enrollment.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && enrollment.Status != filter.Status {
			continue
		}
		if filter.PaymentConfirmed != nil && enrollment.PaymentConfirmed != *filter.PaymentConfirmed {
			continue
		}
		if filter.Expired != nil {
			expired := enrollment.Status == model.EnrollmentExpired || enrollment.IsExpired(now)
			if expired != *filter.Expired {
				continue
			}
		}
		if filter.ExpiresFrom != nil && (enrollment.ExpiresAt == nil || enrollment.ExpiresAt.Before(*filter.ExpiresFrom)) {
			continue
		}
		if filter.ExpiresUntil != nil && (enrollment.ExpiresAt == nil || !enrollment.ExpiresAt.Before(*filter.ExpiresUntil)) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.searchText(enrollment)), search) {
			continue
		}
		matched = append(matched, cloneEnrollment(enrollment))
	}
	return matched
}

func (r *MemoryEnrollmentRepository) searchText(enrollment model.Enrollment) string {
	if r.SearchText != nil {
		return r.SearchText(enrollment)
	}
	return strconv.FormatUint(uint64(enrollment.UserID), 10) + " " + strconv.FormatUint(uint64(enrollment.CourseID), 10)
}

func sortEnrollments(enrollments []model.Enrollment, opts ListOptions) {
	less := func(a, b model.Enrollment) bool {
		switch opts.SortBy {
		case SortByExpiresAt:
			return timeOrZero(a.ExpiresAt).Before(timeOrZero(b.ExpiresAt))
		case SortByStatus:
			return a.Status < b.Status
		case SortByUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.EnrolledAt.Before(b.EnrolledAt)
		}
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		a, b := enrollments[i], enrollments[j]
		if opts.SortOrder == "asc" {
			if less(a, b) {
				return true
			}
			if less(b, a) {
				return false
			}
		} else {
			if less(b, a) {
				return true
			}
			if less(a, b) {
				return false
			}
		}
		return a.ID < b.ID
	})
}

func cloneEnrollment(e model.Enrollment) model.Enrollment {
	e.ExpiresAt = copyTime(e.ExpiresAt)
	return e
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
