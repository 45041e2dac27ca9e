package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// Create 依赖 (user_id, course_id) 唯一索引保证并发创建只有一个成功
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *model.Enrollment) error {
	err := r.DB.WithContext(ctx).Create(enrollment).Error
	if isDuplicateKey(err) {
		return ErrDuplicateEnrollment
	}
	return err
}

func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).First(&enrollment, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, ErrEnrollmentNotFound)
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, notFound(err, ErrEnrollmentNotFound)
	}
	return &enrollment, nil
}

// FindMany 按条件分页查询，返回当前页记录和总数
func (r *EnrollmentRepository) FindMany(ctx context.Context, filter EnrollmentFilter, opts ListOptions) ([]model.Enrollment, int64, error) {
	opts = opts.Normalize()

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	var enrollments []model.Enrollment
	err := r.filtered(ctx, filter).
		Select("enrollments.*").
		Order(sortColumns[opts.SortBy] + " " + direction).
		Order("enrollments.id ASC").
		Offset(opts.Offset()).
		Limit(opts.Limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, 0, err
	}
	return enrollments, total, nil
}

func (r *EnrollmentRepository) Count(ctx context.Context, filter EnrollmentFilter) (int64, error) {
	var total int64
	err := r.filtered(ctx, filter).Count(&total).Error
	return total, err
}

// CountByStatus 按状态分组计数
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, filter EnrollmentFilter) (map[model.EnrollmentStatus]int64, error) {
	var rows []struct {
		Status model.EnrollmentStatus
		Total  int64
	}
	err := r.filtered(ctx, filter).
		Select("enrollments.status AS status, COUNT(*) AS total").
		Group("enrollments.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.EnrollmentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Update 只写可变字段，enrolled_at 与关联 ID 不会被覆盖
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *model.Enrollment) error {
	enrollment.UpdatedAt = time.Now()
	result := r.DB.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("id = ?", enrollment.ID).
		Updates(map[string]interface{}{
			"status":            enrollment.Status,
			"payment_confirmed": enrollment.PaymentConfirmed,
			"expires_at":        enrollment.ExpiresAt,
			"updated_at":        enrollment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// Delete 先删除完成记录、证书、缴费凭证，再删除报名本身
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	result := &DeleteResult{}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var enrollment model.Enrollment
		if err := tx.First(&enrollment, "id = ?", id).Error; err != nil {
			return notFound(err, ErrEnrollmentNotFound)
		}

		progress := tx.Where("enrollment_id = ?", id).Delete(&model.LessonProgress{})
		if progress.Error != nil {
			return progress.Error
		}
		result.CompletionRecords = progress.RowsAffected

		if err := tx.Model(&model.Certificate{}).
			Where("enrollment_id = ? AND file_key <> ''", id).
			Pluck("file_key", &result.CertificateFiles).Error; err != nil {
			return err
		}
		certificates := tx.Where("enrollment_id = ?", id).Delete(&model.Certificate{})
		if certificates.Error != nil {
			return certificates.Error
		}
		result.Certificates = certificates.RowsAffected

		receipts := tx.Where("enrollment_id = ?", id).Delete(&model.PaymentReceipt{})
		if receipts.Error != nil {
			return receipts.Error
		}
		result.PaymentReceipts = receipts.RowsAffected

		return tx.Delete(&model.Enrollment{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireLapsed 逐条条件更新；并发清理时同一条记录只会被其中一次更新
func (r *EnrollmentRepository) ExpireLapsed(ctx context.Context, now time.Time) ([]model.ExpiredEnrollment, error) {
	var candidates []model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ? AND status <> ?", now, model.EnrollmentExpired).
		Order("expires_at ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	expired := make([]model.ExpiredEnrollment, 0, len(candidates))
	for _, candidate := range candidates {
		result := r.DB.WithContext(ctx).
			Model(&model.Enrollment{}).
			Where("id = ? AND status <> ?", candidate.ID, model.EnrollmentExpired).
			Updates(map[string]interface{}{
				"status":     model.EnrollmentExpired,
				"updated_at": now,
			})
		if result.Error != nil {
			return expired, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		expired = append(expired, model.ExpiredEnrollment{
			ID:        candidate.ID,
			UserID:    candidate.UserID,
			CourseID:  candidate.CourseID,
			ExpiredAt: *candidate.ExpiresAt,
		})
	}
	return expired, nil
}

func (r *EnrollmentRepository) filtered(ctx context.Context, filter EnrollmentFilter) *gorm.DB {
	query := r.DB.WithContext(ctx).Model(&model.Enrollment{})

	if filter.UserID != 0 {
		query = query.Where("enrollments.user_id = ?", filter.UserID)
	}
	if filter.CourseID != 0 {
		query = query.Where("enrollments.course_id = ?", filter.CourseID)
	}
	if filter.Status != "" {
		query = query.Where("enrollments.status = ?", filter.Status)
	}
	if filter.PaymentConfirmed != nil {
		query = query.Where("enrollments.payment_confirmed = ?", *filter.PaymentConfirmed)
	}
	if filter.Expired != nil {
		now := filter.now()
		if *filter.Expired {
			query = query.Where("(enrollments.status = ? OR (enrollments.expires_at IS NOT NULL AND enrollments.expires_at < ?))",
				model.EnrollmentExpired, now)
		} else {
			query = query.Where("enrollments.status <> ? AND (enrollments.expires_at IS NULL OR enrollments.expires_at >= ?)",
				model.EnrollmentExpired, now)
		}
	}
	if filter.ExpiresFrom != nil {
		query = query.Where("enrollments.expires_at >= ?", *filter.ExpiresFrom)
	}
	if filter.ExpiresUntil != nil {
		query = query.Where("enrollments.expires_at < ?", *filter.ExpiresUntil)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.
			Joins("JOIN users ON users.id = enrollments.user_id").
			Joins("JOIN courses ON courses.id = enrollments.course_id").
			Where("(users.name LIKE ? OR users.email LIKE ? OR courses.title LIKE ?)", like, like, like)
	}
	return query
}
