package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type transcriptFixture struct {
	svc         *TranscriptService
	pendingRepo *repository.PendingTranscriptRepository
	lessonRepo  *repository.LessonRepository
	db          *gorm.DB
	teacher     *model.User
	course      *model.Course
}

func newTranscriptFixture(t *testing.T) *transcriptFixture {
	t.Helper()
	db := newTestDB(t)
	teacher := seedTeacher(t, db, "TEACH001")
	course := seedCourse(t, db, teacher.ID, "ABC1234", "数据结构")

	pendingRepo := repository.NewPendingTranscriptRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)

	return &transcriptFixture{
		svc:         NewTranscriptService(db, pendingRepo, courseRepo, lessonRepo, nil),
		pendingRepo: pendingRepo,
		lessonRepo:  lessonRepo,
		db:          db,
		teacher:     teacher,
		course:      course,
	}
}

func (f *transcriptFixture) seedPending(t *testing.T, title string) *model.PendingTranscript {
	t.Helper()
	pt := &model.PendingTranscript{
		TeacherID:   f.teacher.ID,
		CourseCode:  f.course.Code,
		CourseName:  f.course.Name,
		LessonTitle: title,
		Transcript:  "今天我们讲二叉树的遍历，先从前序遍历开始。",
		CapturedAt:  time.Now(),
	}
	require.NoError(t, f.pendingRepo.Create(pt))
	return pt
}

func TestProcessCreatesLesson(t *testing.T) {
	f := newTranscriptFixture(t)
	pt := f.seedPending(t, "第三讲 二叉树")

	lesson, err := f.svc.Process(f.teacher.ID, pt.ID, f.course.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "LESSON001", lesson.Code)
	assert.Equal(t, "第三讲 二叉树", lesson.Title)
	assert.Equal(t, pt.Transcript, lesson.Transcript)
	assert.Equal(t, model.SummaryGenerating, lesson.SummaryStatus)
	assert.Equal(t, 0, lesson.Position)
	assert.Equal(t, f.course.ID, lesson.CourseID)

	got, err := f.pendingRepo.FindByID(pt.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
}

func TestProcessCustomTitle(t *testing.T) {
	f := newTranscriptFixture(t)
	pt := f.seedPending(t, "untitled")

	lesson, err := f.svc.Process(f.teacher.ID, pt.ID, f.course.ID, "第三讲 二叉树（修订）")
	require.NoError(t, err)
	assert.Equal(t, "第三讲 二叉树（修订）", lesson.Title)
}

func TestProcessPositionAndCodeIncrement(t *testing.T) {
	f := newTranscriptFixture(t)
	first := f.seedPending(t, "第一讲")
	second := f.seedPending(t, "第二讲")

	l1, err := f.svc.Process(f.teacher.ID, first.ID, f.course.ID, "")
	require.NoError(t, err)
	l2, err := f.svc.Process(f.teacher.ID, second.ID, f.course.ID, "")
	require.NoError(t, err)

	assert.Equal(t, 0, l1.Position)
	assert.Equal(t, 1, l2.Position)
	assert.Equal(t, "LESSON001", l1.Code)
	assert.Equal(t, "LESSON002", l2.Code)
}

func TestProcessTwiceReturnsConflict(t *testing.T) {
	f := newTranscriptFixture(t)
	pt := f.seedPending(t, "第三讲 二叉树")

	_, err := f.svc.Process(f.teacher.ID, pt.ID, f.course.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Process(f.teacher.ID, pt.ID, f.course.ID, "")
	assert.ErrorIs(t, err, util.ErrAlreadyProcessed)

	// 不会产生第二个课时
	count, err := f.lessonRepo.CountByCourse(f.course.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestProcessLosesRaceOnProcessedFlag(t *testing.T) {
	f := newTranscriptFixture(t)
	pt := f.seedPending(t, "第三讲 二叉树")

	// 另一请求抢先翻转了 processed 标志
	won, err := f.pendingRepo.MarkProcessed(nil, pt.ID)
	require.NoError(t, err)
	require.True(t, won)

	_, err = f.svc.Process(f.teacher.ID, pt.ID, f.course.ID, "")
	assert.ErrorIs(t, err, util.ErrAlreadyProcessed)
}

func TestProcessUnknownPending(t *testing.T) {
	f := newTranscriptFixture(t)
	_, err := f.svc.Process(f.teacher.ID, 9999, f.course.ID, "")
	assert.ErrorIs(t, err, util.ErrPendingNotFound)
}

func TestProcessForeignPendingForbidden(t *testing.T) {
	f := newTranscriptFixture(t)
	pt := f.seedPending(t, "第三讲 二叉树")

	other := seedTeacher(t, f.db, "TEACH002")
	_, err := f.svc.Process(other.ID, pt.ID, f.course.ID, "")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestProcessForeignCourseForbidden(t *testing.T) {
	f := newTranscriptFixture(t)
	pt := f.seedPending(t, "第三讲 二叉树")

	other := seedTeacher(t, f.db, "TEACH002")
	otherCourse := seedCourse(t, f.db, other.ID, "XYZ7890", "操作系统")

	_, err := f.svc.Process(f.teacher.ID, pt.ID, otherCourse.ID, "")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestDeletePendingOwnerOnly(t *testing.T) {
	f := newTranscriptFixture(t)
	pt := f.seedPending(t, "第三讲 二叉树")

	other := seedTeacher(t, f.db, "TEACH002")
	err := f.svc.DeletePending(other.ID, pt.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	require.NoError(t, f.svc.DeletePending(f.teacher.ID, pt.ID))
	_, err = f.svc.GetPending(f.teacher.ID, pt.ID)
	assert.ErrorIs(t, err, util.ErrPendingNotFound)
}

func TestListPendingFiltersProcessed(t *testing.T) {
	f := newTranscriptFixture(t)
	open := f.seedPending(t, "第一讲")
	done := f.seedPending(t, "第二讲")
	won, err := f.pendingRepo.MarkProcessed(nil, done.ID)
	require.NoError(t, err)
	require.True(t, won)

	list, err := f.svc.ListPending(f.teacher.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	all, err := f.svc.ListPending(f.teacher.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
