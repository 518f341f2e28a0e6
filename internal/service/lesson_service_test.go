package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type lessonFixture struct {
	svc        *LessonService
	lessonRepo *repository.LessonRepository
	courseRepo *repository.CourseRepository
	db         *gorm.DB
	teacher    *model.User
	course     *model.Course
}

func newLessonFixture(t *testing.T, worker *SummaryWorker) *lessonFixture {
	t.Helper()
	db := newTestDB(t)
	teacher := seedTeacher(t, db, "TEACH001")
	course := seedCourse(t, db, teacher.ID, "ABC1234", "数据结构")

	lessonRepo := repository.NewLessonRepository(db)
	courseRepo := repository.NewCourseRepository(db)

	return &lessonFixture{
		svc:        NewLessonService(lessonRepo, courseRepo, nil, worker),
		lessonRepo: lessonRepo,
		courseRepo: courseRepo,
		db:         db,
		teacher:    teacher,
		course:     course,
	}
}

func (f *lessonFixture) seedLesson(t *testing.T, code string, position int, status model.SummaryStatus) *model.Lesson {
	t.Helper()
	lesson := &model.Lesson{
		Code:          code,
		Title:         "课时 " + code,
		Transcript:    "transcript",
		SummaryStatus: status,
		Position:      position,
		CourseID:      f.course.ID,
	}
	require.NoError(t, f.lessonRepo.Create(lesson))
	return lesson
}

func TestReorderLessons(t *testing.T) {
	f := newLessonFixture(t, nil)
	l1 := f.seedLesson(t, "LESSON001", 0, model.SummaryCompleted)
	l2 := f.seedLesson(t, "LESSON002", 1, model.SummaryCompleted)
	l3 := f.seedLesson(t, "LESSON003", 2, model.SummaryCompleted)

	require.NoError(t, f.svc.Reorder(f.teacher.ID, f.course.ID, []uint{l3.ID, l1.ID, l2.ID}))

	lessons, err := f.lessonRepo.FindByCourse(f.course.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 3)
	assert.Equal(t, l3.ID, lessons[0].ID)
	assert.Equal(t, l1.ID, lessons[1].ID)
	assert.Equal(t, l2.ID, lessons[2].ID)
}

func TestReorderRejectsForeignLesson(t *testing.T) {
	f := newLessonFixture(t, nil)
	l1 := f.seedLesson(t, "LESSON001", 0, model.SummaryCompleted)

	err := f.svc.Reorder(f.teacher.ID, f.course.ID, []uint{l1.ID, 9999})
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestRegenerateSummaryWhileGenerating(t *testing.T) {
	f := newLessonFixture(t, nil)
	lesson := f.seedLesson(t, "LESSON001", 0, model.SummaryGenerating)

	err := f.svc.RegenerateSummary(f.teacher.ID, lesson.ID)
	assert.ErrorIs(t, err, util.ErrSummaryBusy)
}

func TestRegenerateSummaryQueueFull(t *testing.T) {
	f := newLessonFixture(t, nil)
	lesson := f.seedLesson(t, "LESSON001", 0, model.SummaryFailed)

	// worker 未启动且队列已占满，入队必然失败
	ai := NewAIService(config.AIConfig{BaseURL: "http://127.0.0.1:0", Model: "test"})
	worker := NewSummaryWorker(f.lessonRepo, ai, 1)
	require.True(t, worker.Enqueue(9999))
	f.svc = NewLessonService(f.lessonRepo, f.courseRepo, nil, worker)

	err := f.svc.RegenerateSummary(f.teacher.ID, lesson.ID)
	assert.ErrorIs(t, err, util.ErrQueueFull)

	got, err := f.lessonRepo.FindByID(lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SummaryFailed, got.SummaryStatus)
}

func TestStudentAccessRequiresEnrollment(t *testing.T) {
	f := newLessonFixture(t, nil)
	lesson := f.seedLesson(t, "LESSON001", 0, model.SummaryCompleted)

	student := &model.User{Name: "小明", Email: "student@example.com", Password: "hashed", Role: model.Student}
	require.NoError(t, f.db.Create(student).Error)

	_, err := f.svc.GetForStudent(student.ID, lesson.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	require.NoError(t, f.courseRepo.Enroll(&model.Enrollment{StudentID: student.ID, CourseID: f.course.ID}))

	got, err := f.svc.GetForStudent(student.ID, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, got.ID)
}
