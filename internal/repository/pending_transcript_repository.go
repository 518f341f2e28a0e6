package repository

import (
	"ai_tutor_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type PendingTranscriptRepository struct {
	DB *gorm.DB
}

func NewPendingTranscriptRepository(db *gorm.DB) *PendingTranscriptRepository {
	return &PendingTranscriptRepository{DB: db}
}

func (r *PendingTranscriptRepository) Create(pt *model.PendingTranscript) error {
	return r.DB.Create(pt).Error
}

func (r *PendingTranscriptRepository) FindByID(id uint) (*model.PendingTranscript, error) {
	var pt model.PendingTranscript
	err := r.DB.First(&pt, id).Error
	return &pt, err
}

// FindOpenMatch 查找可追加的未处理记录：同教师、同课程码，
// 课程名与课时名不区分大小写，采集时间不早于 cutoff。
// 多条命中时取采集时间最新的一条。
func (r *PendingTranscriptRepository) FindOpenMatch(teacherID uint, courseCode, courseName, lessonTitle string, cutoff time.Time) (*model.PendingTranscript, error) {
	var pt model.PendingTranscript
	err := r.DB.
		Where("teacher_id = ? AND course_code = ?", teacherID, courseCode).
		Where("LOWER(course_name) = LOWER(?)", courseName).
		Where("LOWER(lesson_title) = LOWER(?)", lessonTitle).
		Where("processed = ?", false).
		Where("captured_at >= ?", cutoff).
		Order("captured_at DESC").
		First(&pt).Error
	return &pt, err
}

// Append 追加转写文本并刷新采集时间；replaceMeta 为真时覆盖元数据
func (r *PendingTranscriptRepository) Append(id uint, transcript string, capturedAt time.Time, duration int, source string, replaceMeta bool) error {
	updates := map[string]interface{}{
		"transcript":  transcript,
		"captured_at": capturedAt,
	}
	if replaceMeta {
		updates["duration"] = duration
		updates["source"] = source
	}
	return r.DB.Model(&model.PendingTranscript{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *PendingTranscriptRepository) FindByTeacher(teacherID uint, includeProcessed bool) ([]*model.PendingTranscript, error) {
	var pts []*model.PendingTranscript
	q := r.DB.Where("teacher_id = ?", teacherID)
	if !includeProcessed {
		q = q.Where("processed = ?", false)
	}
	err := q.Order("captured_at DESC").Find(&pts).Error
	return pts, err
}

// MarkProcessed 将 processed 从 false 置为 true。
// 条件更新 + 受影响行数判断，并发调用只有一方返回 true。
func (r *PendingTranscriptRepository) MarkProcessed(tx *gorm.DB, id uint) (bool, error) {
	if tx == nil {
		tx = r.DB
	}
	res := tx.Model(&model.PendingTranscript{}).
		Where("id = ? AND processed = ?", id, false).
		Update("processed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PendingTranscriptRepository) Delete(id uint) error {
	return r.DB.Delete(&model.PendingTranscript{}, id).Error
}
