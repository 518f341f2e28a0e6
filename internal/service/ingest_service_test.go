package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngestService(t *testing.T) (*IngestService, *repository.PendingTranscriptRepository, *model.Course) {
	t.Helper()
	db := newTestDB(t)
	teacher := seedTeacher(t, db, "TEACH001")
	course := seedCourse(t, db, teacher.ID, "ABC1234", "数据结构")

	courseRepo := repository.NewCourseRepository(db)
	pendingRepo := repository.NewPendingTranscriptRepository(db)
	return NewIngestService(courseRepo, pendingRepo, 2*time.Hour), pendingRepo, course
}

func submission(capturedAt time.Time) *TranscriptSubmission {
	return &TranscriptSubmission{
		TeacherCode: "TEACH001",
		CourseCode:  "ABC1234",
		CourseName:  "数据结构",
		LessonTitle: "第三讲 二叉树",
		Transcript:  "今天我们讲二叉树的遍历，先从前序遍历开始。",
		CapturedAt:  capturedAt,
	}
}

func TestSubmitCreatesNewPending(t *testing.T) {
	svc, pendingRepo, course := newIngestService(t)

	result, err := svc.Submit(submission(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, result.Action)
	assert.NotZero(t, result.PendingTranscriptID)

	pt, err := pendingRepo.FindByID(result.PendingTranscriptID)
	require.NoError(t, err)
	assert.Equal(t, course.TeacherID, pt.TeacherID)
	assert.Equal(t, "ABC1234", pt.CourseCode)
	assert.False(t, pt.Processed)
}

func TestSubmitAppendsWithinWindow(t *testing.T) {
	svc, pendingRepo, _ := newIngestService(t)

	first := submission(time.Now().Add(-30 * time.Minute))
	created, err := svc.Submit(first)
	require.NoError(t, err)

	second := submission(time.Now())
	second.Transcript = "接下来是中序遍历，注意访问顺序的变化。"
	appended, err := svc.Submit(second)
	require.NoError(t, err)

	assert.Equal(t, ActionAppended, appended.Action)
	assert.Equal(t, created.PendingTranscriptID, appended.PendingTranscriptID)

	pt, err := pendingRepo.FindByID(created.PendingTranscriptID)
	require.NoError(t, err)
	assert.Contains(t, pt.Transcript, TranscriptDelimiter)
	assert.True(t, strings.HasPrefix(pt.Transcript, first.Transcript))
	assert.True(t, strings.HasSuffix(pt.Transcript, second.Transcript))
}

func TestSubmitMatchIsCaseInsensitive(t *testing.T) {
	svc, _, _ := newIngestService(t)

	first := submission(time.Now().Add(-10 * time.Minute))
	first.CourseName = "Data Structures"
	first.LessonTitle = "Lecture 3: Binary Trees"
	_, err := svc.Submit(first)
	require.NoError(t, err)

	second := submission(time.Now())
	second.CourseName = "DATA STRUCTURES"
	second.LessonTitle = "lecture 3: binary trees"
	result, err := svc.Submit(second)
	require.NoError(t, err)
	assert.Equal(t, ActionAppended, result.Action)
}

func TestSubmitOutsideWindowCreatesNew(t *testing.T) {
	svc, _, _ := newIngestService(t)

	old, err := svc.Submit(submission(time.Now().Add(-3 * time.Hour)))
	require.NoError(t, err)

	fresh, err := svc.Submit(submission(time.Now()))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, fresh.Action)
	assert.NotEqual(t, old.PendingTranscriptID, fresh.PendingTranscriptID)
}

func TestSubmitUnknownCourseCode(t *testing.T) {
	svc, _, _ := newIngestService(t)

	sub := submission(time.Now())
	sub.CourseCode = "ZZZ9999"
	_, err := svc.Submit(sub)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestSubmitMetadataReplacedOnAppend(t *testing.T) {
	svc, pendingRepo, _ := newIngestService(t)

	first := submission(time.Now().Add(-20 * time.Minute))
	first.Metadata = &TranscriptMetadata{Duration: 600, Source: "browser-extension"}
	created, err := svc.Submit(first)
	require.NoError(t, err)

	second := submission(time.Now())
	second.Metadata = &TranscriptMetadata{Duration: 1800, Source: "browser-extension"}
	_, err = svc.Submit(second)
	require.NoError(t, err)

	pt, err := pendingRepo.FindByID(created.PendingTranscriptID)
	require.NoError(t, err)
	assert.Equal(t, 1800, pt.Duration)
}

func TestSubmitMetadataKeptWhenAbsent(t *testing.T) {
	svc, pendingRepo, _ := newIngestService(t)

	first := submission(time.Now().Add(-20 * time.Minute))
	first.Metadata = &TranscriptMetadata{Duration: 600, Source: "browser-extension"}
	created, err := svc.Submit(first)
	require.NoError(t, err)

	second := submission(time.Now())
	second.Metadata = nil
	_, err = svc.Submit(second)
	require.NoError(t, err)

	pt, err := pendingRepo.FindByID(created.PendingTranscriptID)
	require.NoError(t, err)
	assert.Equal(t, 600, pt.Duration)
	assert.Equal(t, "browser-extension", pt.Source)
}

func TestSubmitProcessedRecordNotMatched(t *testing.T) {
	svc, pendingRepo, _ := newIngestService(t)

	created, err := svc.Submit(submission(time.Now().Add(-10 * time.Minute)))
	require.NoError(t, err)

	won, err := pendingRepo.MarkProcessed(nil, created.PendingTranscriptID)
	require.NoError(t, err)
	require.True(t, won)

	result, err := svc.Submit(submission(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, result.Action)
	assert.NotEqual(t, created.PendingTranscriptID, result.PendingTranscriptID)
}
