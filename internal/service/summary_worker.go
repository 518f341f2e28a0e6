package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/pkg/logger"
	"ai_tutor_backend/pkg/monitoring"
	"sync"

	"go.uber.org/zap"
)

// SummaryWorker 后台摘要生成。课时创建后由 Process 入队，
// 请求响应不等待结果；生成失败只落 summary_status=failed，
// 不回滚课时，由教师手动重新触发。
type SummaryWorker struct {
	lessonRepo *repository.LessonRepository
	ai         *AIService
	queue      chan uint
	stop       chan struct{}
	wg         sync.WaitGroup
}

func NewSummaryWorker(lessonRepo *repository.LessonRepository, ai *AIService, queueSize int) *SummaryWorker {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &SummaryWorker{
		lessonRepo: lessonRepo,
		ai:         ai,
		queue:      make(chan uint, queueSize),
		stop:       make(chan struct{}),
	}
}

func (w *SummaryWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *SummaryWorker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

// Enqueue 非阻塞入队，队列已满返回 false
func (w *SummaryWorker) Enqueue(lessonID uint) bool {
	select {
	case w.queue <- lessonID:
		return true
	default:
		return false
	}
}

func (w *SummaryWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case lessonID := <-w.queue:
			w.generate(lessonID)
		case <-w.stop:
			return
		}
	}
}

func (w *SummaryWorker) generate(lessonID uint) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("summary worker panic", zap.Any("recover", r), zap.Uint("lessonId", lessonID))
			w.lessonRepo.UpdateSummaryStatus(lessonID, model.SummaryFailed)
			monitoring.SummaryJobCounter.WithLabelValues("failed").Inc()
		}
	}()

	lesson, err := w.lessonRepo.FindByID(lessonID)
	if err != nil {
		logger.Log.Error("summary worker: lesson not found", zap.Uint("lessonId", lessonID), zap.Error(err))
		return
	}

	summary, err := w.ai.Summarize(lesson.Title, lesson.Transcript)
	if err != nil {
		logger.Log.Error("summary generation failed",
			zap.Uint("lessonId", lessonID),
			zap.String("lessonCode", lesson.Code),
			zap.Error(err))
		w.lessonRepo.UpdateSummaryStatus(lessonID, model.SummaryFailed)
		monitoring.SummaryJobCounter.WithLabelValues("failed").Inc()
		return
	}

	if err := w.lessonRepo.UpdateSummary(lessonID, summary, model.SummaryCompleted); err != nil {
		logger.Log.Error("summary save failed", zap.Uint("lessonId", lessonID), zap.Error(err))
		monitoring.SummaryJobCounter.WithLabelValues("failed").Inc()
		return
	}

	monitoring.SummaryJobCounter.WithLabelValues("completed").Inc()
	logger.Log.Info("summary generated", zap.Uint("lessonId", lessonID), zap.String("lessonCode", lesson.Code))
}
