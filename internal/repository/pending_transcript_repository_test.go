package repository

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/pkg/database"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedPending(t *testing.T, repo *PendingTranscriptRepository, teacherID uint, title string, capturedAt time.Time) *model.PendingTranscript {
	t.Helper()
	pt := &model.PendingTranscript{
		TeacherID:   teacherID,
		CourseCode:  "ABC1234",
		CourseName:  "Data Structures",
		LessonTitle: title,
		Transcript:  "transcript body for " + title,
		CapturedAt:  capturedAt,
	}
	require.NoError(t, repo.Create(pt))
	return pt
}

func TestFindOpenMatchPicksMostRecent(t *testing.T) {
	repo := NewPendingTranscriptRepository(newTestDB(t))

	older := seedPending(t, repo, 1, "Lecture 3", time.Now().Add(-90*time.Minute))
	newer := seedPending(t, repo, 1, "Lecture 3", time.Now().Add(-10*time.Minute))

	got, err := repo.FindOpenMatch(1, "ABC1234", "Data Structures", "Lecture 3", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.NotEqual(t, older.ID, got.ID)
}

func TestFindOpenMatchCaseInsensitive(t *testing.T) {
	repo := NewPendingTranscriptRepository(newTestDB(t))
	pt := seedPending(t, repo, 1, "Lecture 3", time.Now())

	got, err := repo.FindOpenMatch(1, "ABC1234", "DATA structures", "lecture 3", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, pt.ID, got.ID)
}

func TestFindOpenMatchRespectsCutoff(t *testing.T) {
	repo := NewPendingTranscriptRepository(newTestDB(t))
	seedPending(t, repo, 1, "Lecture 3", time.Now().Add(-3*time.Hour))

	_, err := repo.FindOpenMatch(1, "ABC1234", "Data Structures", "Lecture 3", time.Now().Add(-2*time.Hour))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindOpenMatchSkipsProcessedAndOtherTeachers(t *testing.T) {
	repo := NewPendingTranscriptRepository(newTestDB(t))

	done := seedPending(t, repo, 1, "Lecture 3", time.Now())
	won, err := repo.MarkProcessed(nil, done.ID)
	require.NoError(t, err)
	require.True(t, won)

	seedPending(t, repo, 2, "Lecture 3", time.Now())

	_, err = repo.FindOpenMatch(1, "ABC1234", "Data Structures", "Lecture 3", time.Now().Add(-2*time.Hour))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMarkProcessedWinsOnlyOnce(t *testing.T) {
	repo := NewPendingTranscriptRepository(newTestDB(t))
	pt := seedPending(t, repo, 1, "Lecture 3", time.Now())

	won, err := repo.MarkProcessed(nil, pt.ID)
	require.NoError(t, err)
	assert.True(t, won)

	again, err := repo.MarkProcessed(nil, pt.ID)
	require.NoError(t, err)
	assert.False(t, again)

	got, err := repo.FindByID(pt.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
}

func TestAppendRefreshesCaptureTime(t *testing.T) {
	repo := NewPendingTranscriptRepository(newTestDB(t))
	pt := seedPending(t, repo, 1, "Lecture 3", time.Now().Add(-time.Hour))

	newCapture := time.Now()
	require.NoError(t, repo.Append(pt.ID, pt.Transcript+"\nmore", newCapture, 900, "browser-extension", true))

	got, err := repo.FindByID(pt.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Transcript, "more")
	assert.Equal(t, 900, got.Duration)
	assert.WithinDuration(t, newCapture, got.CapturedAt, 2*time.Second)
}
