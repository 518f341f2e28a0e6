package util

import "errors"

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")
	ErrCourseNotFound   = errors.New("course not found")
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrPendingNotFound  = errors.New("pending transcript not found")
	ErrAlreadyProcessed = errors.New("transcript already processed")
	ErrAlreadyEnrolled  = errors.New("already enrolled in course")
	ErrNotEnrolled      = errors.New("not enrolled in course")
	ErrSessionNotFound  = errors.New("chat session not found")
	ErrSummaryBusy      = errors.New("summary generation already in progress")
	ErrQueueFull        = errors.New("summary queue is full")
)
