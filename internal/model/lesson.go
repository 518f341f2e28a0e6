package model

// SummaryStatus AI摘要生成状态
type SummaryStatus string

const (
	SummaryNotStarted SummaryStatus = "not_started"
	SummaryGenerating SummaryStatus = "generating"
	SummaryCompleted  SummaryStatus = "completed"
	SummaryFailed     SummaryStatus = "failed"
)

// Lesson 课时，由待处理转写稿转正生成
type Lesson struct {
	BaseModel
	Code              string        `gorm:"size:16;uniqueIndex;not null" json:"code"`
	Title             string        `gorm:"size:200;not null" json:"title"`
	Transcript        string        `gorm:"type:longtext" json:"transcript"`
	Summary           *string       `gorm:"type:longtext" json:"summary"`
	SummaryStatus     SummaryStatus `gorm:"size:20;default:'not_started'" json:"summaryStatus"`
	Position          int           `gorm:"default:0" json:"position"` // 课程内排序，取 max+1
	CourseID          uint          `gorm:"index;not null" json:"courseId"`
	Course            Course        `gorm:"foreignKey:CourseID" json:"-"`
	RecordingURL      string        `gorm:"size:255" json:"recordingUrl"`
	RecordingDuration float64       `gorm:"default:0" json:"recordingDuration"` // 秒
}

func (Lesson) TableName() string {
	return "lessons"
}
