package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCourseService(t *testing.T) (*CourseService, *gorm.DB, *model.User) {
	t.Helper()
	db := newTestDB(t)
	teacher := seedTeacher(t, db, "TEACH001")
	return NewCourseService(repository.NewCourseRepository(db)), db, teacher
}

func TestCreateCourseGeneratesCode(t *testing.T) {
	svc, _, teacher := newCourseService(t)

	course, err := svc.Create(teacher.ID, "数据结构", "二叉树、图、排序")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{7}$`), course.Code)
	assert.Equal(t, teacher.ID, course.TeacherID)
}

func TestEnrollByCode(t *testing.T) {
	svc, db, teacher := newCourseService(t)
	course, err := svc.Create(teacher.ID, "数据结构", "")
	require.NoError(t, err)

	student := &model.User{Name: "小明", Email: "ming@example.com", Password: "hashed", Role: model.Student}
	require.NoError(t, db.Create(student).Error)

	got, err := svc.EnrollByCode(student.ID, course.Code)
	require.NoError(t, err)
	assert.Equal(t, course.ID, got.ID)

	// 重复选课
	_, err = svc.EnrollByCode(student.ID, course.Code)
	assert.ErrorIs(t, err, util.ErrAlreadyEnrolled)

	// 无效课程码
	_, err = svc.EnrollByCode(student.ID, "ZZZ9999")
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	courses, err := svc.ListForStudent(student.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, course.ID, courses[0].ID)
}

func TestCourseOwnershipEnforced(t *testing.T) {
	svc, db, teacher := newCourseService(t)
	course, err := svc.Create(teacher.ID, "数据结构", "")
	require.NoError(t, err)

	other := seedTeacher(t, db, "TEACH002")
	_, err = svc.GetOwned(other.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = svc.Update(other.ID, course.ID, "改名", "")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	err = svc.Delete(other.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestDeleteCourseCascades(t *testing.T) {
	svc, db, teacher := newCourseService(t)
	course, err := svc.Create(teacher.ID, "数据结构", "")
	require.NoError(t, err)

	lesson := &model.Lesson{Code: "LESSON001", Title: "第一讲", CourseID: course.ID}
	require.NoError(t, db.Create(lesson).Error)

	student := &model.User{Name: "小明", Email: "ming@example.com", Password: "hashed", Role: model.Student}
	require.NoError(t, db.Create(student).Error)
	_, err = svc.EnrollByCode(student.ID, course.Code)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(teacher.ID, course.ID))

	var lessonCount, enrollCount int64
	db.Model(&model.Lesson{}).Where("course_id = ?", course.ID).Count(&lessonCount)
	db.Model(&model.Enrollment{}).Where("course_id = ?", course.ID).Count(&enrollCount)
	assert.Zero(t, lessonCount)
	assert.Zero(t, enrollCount)

	courses, err := svc.ListForStudent(student.ID)
	require.NoError(t, err)
	assert.Empty(t, courses)
}
