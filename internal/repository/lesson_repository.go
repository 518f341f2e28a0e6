package repository

import (
	"ai_tutor_backend/internal/model"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) Create(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *LessonRepository) FindByID(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.First(&lesson, id).Error
	return &lesson, err
}

func (r *LessonRepository) FindByCourse(courseID uint) ([]*model.Lesson, error) {
	var lessons []*model.Lesson
	err := r.DB.Where("course_id = ?", courseID).Order("position ASC").Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *LessonRepository) CountByCourse(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

// NextPosition 课程内下一个排序位，空课程为0
func (r *LessonRepository) NextPosition(courseID uint) (int, error) {
	var max *int
	err := r.DB.Model(&model.Lesson{}).
		Where("course_id = ?", courseID).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (r *LessonRepository) UpdateSummary(lessonID uint, summary string, status model.SummaryStatus) error {
	return r.DB.Model(&model.Lesson{}).
		Where("id = ?", lessonID).
		Updates(map[string]interface{}{
			"summary":        summary,
			"summary_status": status,
		}).Error
}

func (r *LessonRepository) UpdateSummaryStatus(lessonID uint, status model.SummaryStatus) error {
	return r.DB.Model(&model.Lesson{}).
		Where("id = ?", lessonID).
		Update("summary_status", status).
		Error
}

func (r *LessonRepository) UpdateRecording(lessonID uint, url string, duration float64) error {
	return r.DB.Model(&model.Lesson{}).
		Where("id = ?", lessonID).
		Updates(map[string]interface{}{
			"recording_url":      url,
			"recording_duration": duration,
		}).Error
}

func (r *LessonRepository) UpdatePosition(lessonID uint, position int) error {
	return r.DB.Model(&model.Lesson{}).
		Where("id = ?", lessonID).
		Update("position", position).
		Error
}

// Delete 删除课时及其会话和消息
func (r *LessonRepository) Delete(lessonID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var sessionIDs []string
		if err := tx.Model(&model.ChatSession{}).Where("lesson_id = ?", lessonID).Pluck("id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&model.ChatMessage{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", sessionIDs).Delete(&model.ChatSession{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Lesson{}, lessonID).Error
	})
}
