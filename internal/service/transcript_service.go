package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"ai_tutor_backend/pkg/logger"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TranscriptService 待处理转写稿的管理与转正
type TranscriptService struct {
	db          *gorm.DB
	pendingRepo *repository.PendingTranscriptRepository
	courseRepo  *repository.CourseRepository
	lessonRepo  *repository.LessonRepository
	worker      *SummaryWorker
}

func NewTranscriptService(
	db *gorm.DB,
	pendingRepo *repository.PendingTranscriptRepository,
	courseRepo *repository.CourseRepository,
	lessonRepo *repository.LessonRepository,
	worker *SummaryWorker,
) *TranscriptService {
	return &TranscriptService{
		db:          db,
		pendingRepo: pendingRepo,
		courseRepo:  courseRepo,
		lessonRepo:  lessonRepo,
		worker:      worker,
	}
}

func (s *TranscriptService) ListPending(teacherID uint, includeProcessed bool) ([]*model.PendingTranscript, error) {
	return s.pendingRepo.FindByTeacher(teacherID, includeProcessed)
}

func (s *TranscriptService) GetPending(teacherID, pendingID uint) (*model.PendingTranscript, error) {
	pt, err := s.pendingRepo.FindByID(pendingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPendingNotFound
		}
		return nil, err
	}
	if pt.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return pt, nil
}

func (s *TranscriptService) DeletePending(teacherID, pendingID uint) error {
	if _, err := s.GetPending(teacherID, pendingID); err != nil {
		return err
	}
	return s.pendingRepo.Delete(pendingID)
}

// Process 将待处理转写稿转正为课时。
// processed 标志的翻转是条件更新，并发调用只有一方成功，
// 失败方收到 ErrAlreadyProcessed，保证一条转写稿只产生一个课时。
// 摘要生成入队后立即返回，不等待结果。
func (s *TranscriptService) Process(teacherID, pendingID, courseID uint, customTitle string) (*model.Lesson, error) {
	pt, err := s.pendingRepo.FindByID(pendingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPendingNotFound
		}
		return nil, err
	}
	if pt.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	if pt.Processed {
		return nil, util.ErrAlreadyProcessed
	}

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

	count, err := s.lessonRepo.CountByCourse(courseID)
	if err != nil {
		return nil, err
	}
	code, err := util.GenerateLessonCode(int(count)+1, s.lessonRepo.CodeExists)
	if err != nil {
		return nil, err
	}

	position, err := s.lessonRepo.NextPosition(courseID)
	if err != nil {
		return nil, err
	}

	title := pt.LessonTitle
	if customTitle != "" {
		title = customTitle
	}

	lesson := &model.Lesson{
		Code:          code,
		Title:         title,
		Transcript:    pt.Transcript,
		SummaryStatus: model.SummaryGenerating,
		Position:      position,
		CourseID:      courseID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		won, err := s.pendingRepo.MarkProcessed(tx, pendingID)
		if err != nil {
			return err
		}
		if !won {
			return util.ErrAlreadyProcessed
		}
		return tx.Create(lesson).Error
	})
	if err != nil {
		return nil, err
	}

	if s.worker != nil && !s.worker.Enqueue(lesson.ID) {
		// 队列满时直接标记失败，教师可手动重试
		logger.Log.Warn("summary queue full", zap.Uint("lessonId", lesson.ID))
		s.lessonRepo.UpdateSummaryStatus(lesson.ID, model.SummaryFailed)
		lesson.SummaryStatus = model.SummaryFailed
	}

	return lesson, nil
}
