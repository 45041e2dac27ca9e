package model

// CourseStatus 课程发布状态
type CourseStatus string

const (
	CourseDraft     CourseStatus = "DRAFT"
	CoursePublished CourseStatus = "PUBLISHED"
	CourseArchived  CourseStatus = "ARCHIVED"
)

// swagger:model Course
type Course struct {
	BaseModel
	Title        string       `gorm:"size:200;not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	Status       CourseStatus `gorm:"size:20;default:'DRAFT';index" json:"status"`
	InstructorID uint         `gorm:"index" json:"instructorId"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseModule 课程下的章节
type CourseModule struct {
	BaseModel
	CourseID uint     `gorm:"index;not null" json:"courseId"`
	Title    string   `gorm:"size:200;not null" json:"title"`
	Order    int      `gorm:"default:0" json:"order"`
	Lessons  []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

// Lesson 章节下的课时
type Lesson struct {
	BaseModel
	ModuleID uint   `gorm:"index;not null" json:"moduleId"`
	Title    string `gorm:"size:200;not null" json:"title"`
	Order    int    `gorm:"default:0" json:"order"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// CourseSummary 附加在报名记录上的课程信息
type CourseSummary struct {
	ID     uint         `json:"id"`
	Title  string       `json:"title"`
	Status CourseStatus `json:"status"`
}

func (c *Course) Summary() *CourseSummary {
	if c == nil {
		return nil
	}
	return &CourseSummary{ID: c.ID, Title: c.Title, Status: c.Status}
}

// LessonLocation 课时及其所属章节
type LessonLocation struct {
	LessonID    uint   `json:"lessonId"`
	LessonTitle string `json:"lessonTitle"`
	ModuleID    uint   `json:"moduleId"`
	ModuleTitle string `json:"moduleTitle"`
}
