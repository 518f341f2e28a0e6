package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedGeneratingLesson(t *testing.T, lessonRepo *repository.LessonRepository, courseID uint) *model.Lesson {
	t.Helper()
	lesson := &model.Lesson{
		Code:          "LESSON001",
		Title:         "第三讲 二叉树",
		Transcript:    "今天我们讲二叉树的遍历，先从前序遍历开始。",
		SummaryStatus: model.SummaryGenerating,
		CourseID:      courseID,
	}
	require.NoError(t, lessonRepo.Create(lesson))
	return lesson
}

func TestSummaryWorkerCompletesLesson(t *testing.T) {
	db := newTestDB(t)
	teacher := seedTeacher(t, db, "TEACH001")
	course := seedCourse(t, db, teacher.ID, "ABC1234", "数据结构")
	lessonRepo := repository.NewLessonRepository(db)
	lesson := seedGeneratingLesson(t, lessonRepo, course.ID)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"本节课讲解了二叉树的三种遍历方式。"}}]}`))
	}))
	defer server.Close()

	ai := NewAIService(config.AIConfig{BaseURL: server.URL, Model: "test"})
	worker := NewSummaryWorker(lessonRepo, ai, 4)
	worker.Start()
	defer worker.Stop()

	require.True(t, worker.Enqueue(lesson.ID))

	require.Eventually(t, func() bool {
		got, err := lessonRepo.FindByID(lesson.ID)
		return err == nil && got.SummaryStatus == model.SummaryCompleted
	}, 3*time.Second, 20*time.Millisecond)

	got, err := lessonRepo.FindByID(lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Contains(t, *got.Summary, "遍历")
}

func TestSummaryWorkerMarksFailure(t *testing.T) {
	db := newTestDB(t)
	teacher := seedTeacher(t, db, "TEACH001")
	course := seedCourse(t, db, teacher.ID, "ABC1234", "数据结构")
	lessonRepo := repository.NewLessonRepository(db)
	lesson := seedGeneratingLesson(t, lessonRepo, course.ID)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	ai := NewAIService(config.AIConfig{BaseURL: server.URL, Model: "test"})
	worker := NewSummaryWorker(lessonRepo, ai, 4)
	worker.Start()
	defer worker.Stop()

	require.True(t, worker.Enqueue(lesson.ID))

	require.Eventually(t, func() bool {
		got, err := lessonRepo.FindByID(lesson.ID)
		return err == nil && got.SummaryStatus == model.SummaryFailed
	}, 3*time.Second, 20*time.Millisecond)

	got, err := lessonRepo.FindByID(lesson.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Summary)
}

func TestSummaryWorkerQueueFull(t *testing.T) {
	db := newTestDB(t)
	lessonRepo := repository.NewLessonRepository(db)
	ai := NewAIService(config.AIConfig{BaseURL: "http://127.0.0.1:0", Model: "test"})

	// 不启动 worker，队列只进不出
	worker := NewSummaryWorker(lessonRepo, ai, 2)
	assert.True(t, worker.Enqueue(1))
	assert.True(t, worker.Enqueue(2))
	assert.False(t, worker.Enqueue(3))
}
