package controller

import (
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	LessonService *service.LessonService
}

func NewLessonController(lessonService *service.LessonService) *LessonController {
	return &LessonController{LessonService: lessonService}
}

// ListLessons godoc
// @Summary 课程下的课时列表（教师）
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Lesson}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/teacher/courses/{id}/lessons [get]
func (c *LessonController) ListLessons(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	lessons, err := c.LessonService.ListForTeacher(claims.UserID, uint(courseID))
	if err != nil {
		c.handleLessonError(ctx, err)
		return
	}
	util.Success(ctx, lessons)
}

// GetLesson godoc
// @Summary 课时详情（教师）
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/teacher/lessons/{id} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	lesson, err := c.LessonService.GetForTeacher(claims.UserID, uint(id))
	if err != nil {
		c.handleLessonError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// DeleteLesson godoc
// @Summary 删除课时
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/teacher/lessons/{id} [delete]
func (c *LessonController) DeleteLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	if err := c.LessonService.Delete(claims.UserID, uint(id)); err != nil {
		c.handleLessonError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type ReorderRequest struct {
	LessonIDs []uint `json:"lessonIds" binding:"required,min=1"`
}

// ReorderLessons godoc
// @Summary 调整课时顺序
// @Description 按给定ID顺序重排课程内所有课时
// @Tags 课时
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Param   body body ReorderRequest true "课时ID顺序"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "ID列表与课程不匹配"
// @Router /api/teacher/courses/{id}/lessons/reorder [put]
func (c *LessonController) ReorderLessons(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	var req ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.LessonService.Reorder(claims.UserID, uint(courseID), req.LessonIDs); err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.BadRequest(ctx, "课时ID列表与课程不匹配")
			return
		}
		c.handleLessonError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RegenerateSummary godoc
// @Summary 重新生成课时摘要
// @Description 将摘要状态置为生成中并投递后台任务
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "摘要正在生成中"
// @Failure 503 {object} util.Response "任务队列已满"
// @Router /api/teacher/lessons/{id}/summary/regenerate [post]
func (c *LessonController) RegenerateSummary(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	if err := c.LessonService.RegenerateSummary(claims.UserID, uint(id)); err != nil {
		switch {
		case errors.Is(err, util.ErrSummaryBusy):
			util.Conflict(ctx, "摘要正在生成中")
		case errors.Is(err, util.ErrQueueFull):
			util.Error(ctx, 503, "任务队列已满，请稍后重试")
		default:
			c.handleLessonError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"message": "summary is being generated"})
}

// UploadRecording godoc
// @Summary 上传课时录音/录像
// @Description 接收多媒体文件，探测时长后转存到对象存储
// @Tags 课时
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   file formData file true "媒体文件"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 400 {object} util.Response "文件无效"
// @Router /api/teacher/lessons/{id}/recording [post]
func (c *LessonController) UploadRecording(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	// 先落到临时文件，ffmpeg探测需要本地路径
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("recording_%d_%s", id, filepath.Base(file.Filename)))
	if err := ctx.SaveUploadedFile(file, tmpPath); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer os.Remove(tmpPath)

	lesson, err := c.LessonService.AttachRecording(ctx.Request.Context(), claims.UserID, uint(id), filepath.Base(file.Filename), tmpPath)
	if err != nil {
		c.handleLessonError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

func (c *LessonController) handleLessonError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrLessonNotFound), errors.Is(err, util.ErrCourseNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied), errors.Is(err, util.ErrNotEnrolled):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

// ListStudentLessons godoc
// @Summary 课程下的课时列表（学生）
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Lesson}
// @Failure 403 {object} util.Response "未选该课程"
// @Router /api/student/courses/{id}/lessons [get]
func (c *LessonController) ListStudentLessons(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	lessons, err := c.LessonService.ListForStudent(claims.UserID, uint(courseID))
	if err != nil {
		c.handleLessonError(ctx, err)
		return
	}
	util.Success(ctx, lessons)
}

// GetStudentLesson godoc
// @Summary 课时详情（学生）
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 403 {object} util.Response "未选该课程"
// @Router /api/student/lessons/{id} [get]
func (c *LessonController) GetStudentLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	lesson, err := c.LessonService.GetForStudent(claims.UserID, uint(id))
	if err != nil {
		c.handleLessonError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}
