package repository

import (
	"ai_tutor_backend/internal/model"

	"gorm.io/gorm"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

// GetOrCreateSession 取学生在该课时下的会话，不存在则创建
func (r *ChatRepository) GetOrCreateSession(lessonID, studentID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.DB.Where("lesson_id = ? AND student_id = ?", lessonID, studentID).First(&session).Error
	if err == nil {
		return &session, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	session = model.ChatSession{
		LessonID:  lessonID,
		StudentID: studentID,
	}
	if err := r.DB.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// FindSessionByLessonStudent 只查不建，用于历史查询
func (r *ChatRepository) FindSessionByLessonStudent(lessonID, studentID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.DB.Where("lesson_id = ? AND student_id = ?", lessonID, studentID).First(&session).Error
	return &session, err
}

func (r *ChatRepository) FindSession(sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.DB.Where("id = ?", sessionID).First(&session).Error
	return &session, err
}

func (r *ChatRepository) CreateMessage(msg *model.ChatMessage) error {
	return r.DB.Create(msg).Error
}

// History 按时间正序返回最近 limit 条消息
func (r *ChatRepository) History(sessionID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	var msgs []*model.ChatMessage
	err := r.DB.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// 倒序查出后翻转为正序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatRepository) CountMessages(sessionID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ChatMessage{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}
