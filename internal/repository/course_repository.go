package repository

import (
	"ai_tutor_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) FindByCode(code string) (*model.Course, error) {
	var course model.Course
	err := r.DB.Where("code = ?", code).First(&course).Error
	return &course, err
}

func (r *CourseRepository) FindByTeacher(teacherID uint) ([]*model.Course, error) {
	var courses []*model.Course
	err := r.DB.Where("teacher_id = ?", teacherID).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Course{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

// Delete 删除课程及其课时、会话、选课关系
func (r *CourseRepository) Delete(courseID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var lessonIDs []uint
		if err := tx.Model(&model.Lesson{}).Where("course_id = ?", courseID).Pluck("id", &lessonIDs).Error; err != nil {
			return err
		}

		if len(lessonIDs) > 0 {
			var sessionIDs []string
			if err := tx.Model(&model.ChatSession{}).Where("lesson_id IN ?", lessonIDs).Pluck("id", &sessionIDs).Error; err != nil {
				return err
			}
			if len(sessionIDs) > 0 {
				if err := tx.Where("session_id IN ?", sessionIDs).Delete(&model.ChatMessage{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", sessionIDs).Delete(&model.ChatSession{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("course_id = ?", courseID).Delete(&model.Lesson{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("course_id = ?", courseID).Delete(&model.Enrollment{}).Error; err != nil {
			return err
		}

		return tx.Delete(&model.Course{}, courseID).Error
	})
}

func (r *CourseRepository) Enroll(enrollment *model.Enrollment) error {
	return r.DB.Create(enrollment).Error
}

func (r *CourseRepository) IsEnrolled(studentID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *CourseRepository) FindByStudent(studentID uint) ([]*model.Course, error) {
	var courses []*model.Course
	err := r.DB.
		Joins("JOIN enrollments ON enrollments.course_id = courses.id AND enrollments.deleted_at IS NULL").
		Where("enrollments.student_id = ?", studentID).
		Order("courses.created_at DESC").
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) CountStudents(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}
