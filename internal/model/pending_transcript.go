package model

import (
	"time"
)

// PendingTranscript 未处理的转写稿提交，等待教师转正为课时。
// 同一 (教师, 课程码, 课程名, 课时名) 在合并窗口内至多存在一条未处理记录，
// 由接收逻辑的先查后写保证，无数据库约束。
type PendingTranscript struct {
	BaseModel
	TeacherID   uint      `gorm:"index;not null" json:"teacherId"`
	CourseCode  string    `gorm:"size:7;index;not null" json:"courseCode"`
	CourseName  string    `gorm:"size:200;not null" json:"courseName"`
	LessonTitle string    `gorm:"size:200;not null" json:"lessonTitle"`
	Transcript  string    `gorm:"type:longtext" json:"transcript"`
	CapturedAt  time.Time `gorm:"index" json:"capturedAt"`
	Duration    int       `gorm:"default:0" json:"duration"` // 采集端上报的时长（秒）
	Source      string    `gorm:"size:100" json:"source"`    // 采集端标识，如 browser-extension
	Processed   bool      `gorm:"default:false;index" json:"processed"`
}

func (PendingTranscript) TableName() string {
	return "pending_transcripts"
}
