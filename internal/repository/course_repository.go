package repository

import (
	"context"
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

// CourseRepository 课程目录的只读访问：课程、章节、课时
type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).First(&course, id).Error
	if err != nil {
		return nil, notFound(err, ErrCourseNotFound)
	}
	return &course, nil
}

// CountLessons 统计课程各章节下的课时总数
func (r *CourseRepository) CountLessons(ctx context.Context, courseID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).
		Model(&model.Lesson{}).
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id AND course_modules.deleted_at IS NULL").
		Where("course_modules.course_id = ?", courseID).
		Count(&total).Error
	return total, err
}

// FindLessonInCourse 查找属于该课程某个章节的课时
func (r *CourseRepository) FindLessonInCourse(ctx context.Context, courseID, lessonID uint) (*model.LessonLocation, error) {
	var location model.LessonLocation
	result := r.DB.WithContext(ctx).
		Table("lessons").
		Select("lessons.id AS lesson_id, lessons.title AS lesson_title, course_modules.id AS module_id, course_modules.title AS module_title").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
		Where("lessons.id = ? AND course_modules.course_id = ?", lessonID, courseID).
		Where("lessons.deleted_at IS NULL AND course_modules.deleted_at IS NULL").
		Limit(1).
		Scan(&location)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrLessonNotFound
	}
	return &location, nil
}
