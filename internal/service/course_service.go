package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

type CourseService struct {
	courseRepo *repository.CourseRepository
}

func NewCourseService(courseRepo *repository.CourseRepository) *CourseService {
	return &CourseService{courseRepo: courseRepo}
}

func (s *CourseService) Create(teacherID uint, name, description string) (*model.Course, error) {
	code, err := util.GenerateUniqueCourseCode(s.courseRepo.CodeExists)
	if err != nil {
		return nil, err
	}

	course := &model.Course{
		Code:        code,
		Name:        name,
		Description: description,
		TeacherID:   teacherID,
	}
	if err := s.courseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListForTeacher(teacherID uint) ([]*model.Course, error) {
	return s.courseRepo.FindByTeacher(teacherID)
}

func (s *CourseService) GetOwned(teacherID, courseID uint) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CourseService) Update(teacherID, courseID uint, name, description string) (*model.Course, error) {
	course, err := s.GetOwned(teacherID, courseID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		course.Name = name
	}
	if description != "" {
		course.Description = description
	}
	if err := s.courseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Delete(teacherID, courseID uint) error {
	if _, err := s.GetOwned(teacherID, courseID); err != nil {
		return err
	}
	return s.courseRepo.Delete(courseID)
}

// EnrollByCode 学生凭课程码选课
func (s *CourseService) EnrollByCode(studentID uint, code string) (*model.Course, error) {
	course, err := s.courseRepo.FindByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	enrolled, err := s.courseRepo.IsEnrolled(studentID, course.ID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, util.ErrAlreadyEnrolled
	}

	if err := s.courseRepo.Enroll(&model.Enrollment{
		StudentID: studentID,
		CourseID:  course.ID,
	}); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListForStudent(studentID uint) ([]*model.Course, error) {
	return s.courseRepo.FindByStudent(studentID)
}

// GetEnrolled 学生查看已选课程，未选返回 ErrNotEnrolled
func (s *CourseService) GetEnrolled(studentID, courseID uint) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	enrolled, err := s.courseRepo.IsEnrolled(studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}
	return course, nil
}
