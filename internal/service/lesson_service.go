package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/gorm"
)

type LessonService struct {
	lessonRepo *repository.LessonRepository
	courseRepo *repository.CourseRepository
	storage    *StorageService
	worker     *SummaryWorker
}

func NewLessonService(
	lessonRepo *repository.LessonRepository,
	courseRepo *repository.CourseRepository,
	storage *StorageService,
	worker *SummaryWorker,
) *LessonService {
	return &LessonService{
		lessonRepo: lessonRepo,
		courseRepo: courseRepo,
		storage:    storage,
		worker:     worker,
	}
}

// getOwned 课时及其归属校验，返回课时（仅教师路径使用）
func (s *LessonService) getOwned(teacherID, lessonID uint) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}

	course, err := s.courseRepo.FindByID(lesson.CourseID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return lesson, nil
}

func (s *LessonService) ListForTeacher(teacherID, courseID uint) ([]*model.Lesson, error) {
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
	return s.lessonRepo.FindByCourse(courseID)
}

func (s *LessonService) ListForStudent(studentID, courseID uint) ([]*model.Lesson, error) {
	enrolled, err := s.courseRepo.IsEnrolled(studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}
	return s.lessonRepo.FindByCourse(courseID)
}

func (s *LessonService) GetForTeacher(teacherID, lessonID uint) (*model.Lesson, error) {
	return s.getOwned(teacherID, lessonID)
}

func (s *LessonService) GetForStudent(studentID, lessonID uint) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}

	enrolled, err := s.courseRepo.IsEnrolled(studentID, lesson.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}
	return lesson, nil
}

func (s *LessonService) Delete(teacherID, lessonID uint) error {
	if _, err := s.getOwned(teacherID, lessonID); err != nil {
		return err
	}
	return s.lessonRepo.Delete(lessonID)
}

// Reorder 按给定顺序重排课程内课时
func (s *LessonService) Reorder(teacherID, courseID uint, orderedIDs []uint) error {
	course, err := s.courseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	if course.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}

	lessons, err := s.lessonRepo.FindByCourse(courseID)
	if err != nil {
		return err
	}
	inCourse := make(map[uint]bool, len(lessons))
	for _, l := range lessons {
		inCourse[l.ID] = true
	}

	for pos, id := range orderedIDs {
		if !inCourse[id] {
			return util.ErrLessonNotFound
		}
		if err := s.lessonRepo.UpdatePosition(id, pos); err != nil {
			return err
		}
	}
	return nil
}

// RegenerateSummary 手动重新触发摘要生成，生成中不可重复触发
func (s *LessonService) RegenerateSummary(teacherID, lessonID uint) error {
	lesson, err := s.getOwned(teacherID, lessonID)
	if err != nil {
		return err
	}
	if lesson.SummaryStatus == model.SummaryGenerating {
		return util.ErrSummaryBusy
	}

	if err := s.lessonRepo.UpdateSummaryStatus(lessonID, model.SummaryGenerating); err != nil {
		return err
	}
	if s.worker == nil || !s.worker.Enqueue(lessonID) {
		s.lessonRepo.UpdateSummaryStatus(lessonID, model.SummaryFailed)
		return util.ErrQueueFull
	}
	return nil
}

// AttachRecording 上传课堂录音并探测时长
func (s *LessonService) AttachRecording(ctx context.Context, teacherID, lessonID uint, filename, localPath string) (*model.Lesson, error) {
	lesson, err := s.getOwned(teacherID, lessonID)
	if err != nil {
		return nil, err
	}

	info, err := util.ProbeMedia(localPath)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("recordings/%s/%s", lesson.Code, filepath.Base(filename))
	url, err := s.storage.UploadFile(ctx, objectName, localPath, "application/octet-stream")
	if err != nil {
		return nil, err
	}

	if err := s.lessonRepo.UpdateRecording(lessonID, url, info.Duration); err != nil {
		return nil, err
	}

	lesson.RecordingURL = url
	lesson.RecordingDuration = info.Duration
	return lesson, nil
}
