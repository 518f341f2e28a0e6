package model

// Course 教师开设的课程，Code 为对外公开的7位课程码
type Course struct {
	BaseModel
	Code        string   `gorm:"size:7;uniqueIndex;not null" json:"code"`
	Name        string   `gorm:"size:200;not null" json:"name"`
	Description string   `gorm:"size:500" json:"description"`
	TeacherID   uint     `gorm:"index;not null" json:"teacherId"`
	Teacher     User     `gorm:"foreignKey:TeacherID" json:"-"`
	Lessons     []Lesson `gorm:"foreignKey:CourseID" json:"lessons,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// Enrollment 学生选课关系
type Enrollment struct {
	BaseModel
	StudentID uint   `gorm:"index;uniqueIndex:idx_student_course;not null" json:"studentId"`
	CourseID  uint   `gorm:"uniqueIndex:idx_student_course;not null" json:"courseId"`
	Course    Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
