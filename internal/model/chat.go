package model

// ChatSession 学生在某课时下与AI助教的会话，一人一课时一会话
type ChatSession struct {
	UUIDBase
	LessonID  uint          `gorm:"index;uniqueIndex:idx_lesson_student;not null" json:"lessonId"`
	StudentID uint          `gorm:"uniqueIndex:idx_lesson_student;not null" json:"studentId"`
	Student   User          `gorm:"foreignKey:StudentID" json:"-"`
	Messages  []ChatMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage 会话消息，先落库再广播到课时房间
type ChatMessage struct {
	UUIDBase
	SessionID string   `gorm:"index;type:varchar(36);not null" json:"sessionId"`
	Role      ChatRole `gorm:"size:20;not null" json:"role"`
	Content   string   `gorm:"type:longtext" json:"content"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
