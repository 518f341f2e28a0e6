package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"ai_tutor_backend/pkg/logger"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const historyWindow = 20 // 带入AI上下文的历史消息条数

// TutorService 学生问答：围绕课时转录内容与AI对话
type TutorService struct {
	lessonRepo *repository.LessonRepository
	courseRepo *repository.CourseRepository
	chatRepo   *repository.ChatRepository
	ai         *AIService
	hub        *ChatHub
}

func NewTutorService(lessonRepo *repository.LessonRepository, courseRepo *repository.CourseRepository, chatRepo *repository.ChatRepository, ai *AIService, hub *ChatHub) *TutorService {
	return &TutorService{
		lessonRepo: lessonRepo,
		courseRepo: courseRepo,
		chatRepo:   chatRepo,
		ai:         ai,
		hub:        hub,
	}
}

// authorize 校验学生已选该课时所在课程
func (s *TutorService) authorize(studentID, lessonID uint) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(lessonID)
	if err != nil {
		return nil, util.ErrLessonNotFound
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

// buildTutorContext 以转录为主、摘要为辅拼装AI上下文
func buildTutorContext(lesson *model.Lesson) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("课时标题：%s\n\n", lesson.Title))
	if lesson.SummaryStatus == model.SummaryCompleted && lesson.Summary != nil {
		sb.WriteString("课时摘要：\n")
		sb.WriteString(*lesson.Summary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("课堂转录：\n")
	sb.WriteString(lesson.Transcript)
	return sb.String()
}

// Ask 提问并以流式方式返回AI回答。
// 用户消息先落库，AI完整回答在流结束后落库并广播到课时房间。
func (s *TutorService) Ask(studentID, lessonID uint, question string) (<-chan string, <-chan error, error) {
	lesson, err := s.authorize(studentID, lessonID)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.chatRepo.GetOrCreateSession(lessonID, studentID)
	if err != nil {
		return nil, nil, err
	}

	history, err := s.chatRepo.History(session.ID, historyWindow)
	if err != nil {
		return nil, nil, err
	}
	aiHistory := make([]AIChatMessage, 0, len(history))
	for _, m := range history {
		aiHistory = append(aiHistory, AIChatMessage{Role: string(m.Role), Content: m.Content})
	}

	userMsg := &model.ChatMessage{
		SessionID: session.ID,
		Role:      model.RoleUser,
		Content:   question,
	}
	if err := s.chatRepo.CreateMessage(userMsg); err != nil {
		return nil, nil, err
	}

	chunks, errs := s.ai.ChatStream(question, buildTutorContext(lesson), aiHistory)

	out := make(chan string)
	outErrs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(outErrs)

		var reply strings.Builder
		for chunk := range chunks {
			reply.WriteString(chunk)
			out <- chunk
		}
		if err := <-errs; err != nil {
			logger.Log.Error("tutor stream failed", zap.Error(err),
				zap.Uint("lessonId", lessonID), zap.Uint("studentId", studentID))
			outErrs <- err
			return
		}

		assistantMsg := &model.ChatMessage{
			SessionID: session.ID,
			Role:      model.RoleAssistant,
			Content:   reply.String(),
		}
		if err := s.chatRepo.CreateMessage(assistantMsg); err != nil {
			logger.Log.Error("assistant message persist failed", zap.Error(err), zap.String("sessionId", session.ID))
			outErrs <- err
			return
		}
		if s.hub != nil {
			s.hub.BroadcastToLesson(lessonID, WSMessage{Type: "TUTOR_REPLY", Data: assistantMsg})
		}
	}()
	return out, outErrs, nil
}

// History 查询学生在该课时的历史对话
func (s *TutorService) History(studentID, lessonID uint, limit int) ([]*model.ChatMessage, error) {
	if _, err := s.authorize(studentID, lessonID); err != nil {
		return nil, err
	}
	session, err := s.chatRepo.FindSessionByLessonStudent(lessonID, studentID)
	if err != nil {
		// 尚未发起过对话，返回空历史
		return []*model.ChatMessage{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.chatRepo.History(session.ID, limit)
}
