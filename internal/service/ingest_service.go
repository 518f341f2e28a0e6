package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"ai_tutor_backend/pkg/monitoring"
	"errors"
	"time"

	"gorm.io/gorm"
)

// TranscriptDelimiter 同一节课多次采集之间的拼接分隔
const TranscriptDelimiter = "\n\n--- Continued ---\n\n"

const (
	ActionCreated  = "created"
	ActionAppended = "appended"
)

// TranscriptSubmission 公开接收端点的提交体。
// teacherCode 由采集端上报但不参与归属解析，归属以 courseCode 为准。
type TranscriptSubmission struct {
	TeacherCode string              `json:"teacherCode" binding:"omitempty,len=8,startswith=TEACH"`
	CourseCode  string              `json:"courseCode" binding:"required,len=7,alphanum,uppercase"`
	CourseName  string              `json:"courseName" binding:"required,max=200"`
	LessonTitle string              `json:"lessonTitle" binding:"required,max=200"`
	Transcript  string              `json:"transcript" binding:"required,min=10,max=100000"`
	CapturedAt  time.Time           `json:"capturedAt" binding:"required"`
	Metadata    *TranscriptMetadata `json:"metadata"`
}

type TranscriptMetadata struct {
	Duration int    `json:"duration"`
	Source   string `json:"source"`
}

type IngestResult struct {
	Action              string `json:"action"`
	PendingTranscriptID uint   `json:"pendingTranscriptId"`
}

// IngestService 决定每次提交是新建待处理记录还是追加到已有记录
type IngestService struct {
	courseRepo  *repository.CourseRepository
	pendingRepo *repository.PendingTranscriptRepository
	mergeWindow time.Duration
}

func NewIngestService(courseRepo *repository.CourseRepository, pendingRepo *repository.PendingTranscriptRepository, mergeWindow time.Duration) *IngestService {
	if mergeWindow <= 0 {
		mergeWindow = 2 * time.Hour
	}
	return &IngestService{
		courseRepo:  courseRepo,
		pendingRepo: pendingRepo,
		mergeWindow: mergeWindow,
	}
}

// Submit 接收一次转写稿提交。
// 合并窗口内命中同教师+同课程码+同名课程/课时（不区分大小写）的
// 未处理记录时追加，否则新建。同一转写稿重复提交会重复追加，
// 采集端重传即视为内容延续。
func (s *IngestService) Submit(sub *TranscriptSubmission) (*IngestResult, error) {
	course, err := s.courseRepo.FindByCode(sub.CourseCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	cutoff := time.Now().Add(-s.mergeWindow)

	existing, err := s.pendingRepo.FindOpenMatch(course.TeacherID, sub.CourseCode, sub.CourseName, sub.LessonTitle, cutoff)
	if err == nil {
		merged := existing.Transcript + TranscriptDelimiter + sub.Transcript

		var duration int
		var source string
		replaceMeta := sub.Metadata != nil
		if replaceMeta {
			duration = sub.Metadata.Duration
			source = sub.Metadata.Source
		}

		if err := s.pendingRepo.Append(existing.ID, merged, sub.CapturedAt, duration, source, replaceMeta); err != nil {
			return nil, err
		}

		monitoring.IngestCounter.WithLabelValues(ActionAppended).Inc()
		return &IngestResult{Action: ActionAppended, PendingTranscriptID: existing.ID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pt := &model.PendingTranscript{
		TeacherID:   course.TeacherID,
		CourseCode:  sub.CourseCode,
		CourseName:  sub.CourseName,
		LessonTitle: sub.LessonTitle,
		Transcript:  sub.Transcript,
		CapturedAt:  sub.CapturedAt,
	}
	if sub.Metadata != nil {
		pt.Duration = sub.Metadata.Duration
		pt.Source = sub.Metadata.Source
	}

	if err := s.pendingRepo.Create(pt); err != nil {
		return nil, err
	}

	monitoring.IngestCounter.WithLabelValues(ActionCreated).Inc()
	return &IngestResult{Action: ActionCreated, PendingTranscriptID: pt.ID}, nil
}
