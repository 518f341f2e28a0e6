package controller

import (
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type TranscriptController struct {
	IngestService     *service.IngestService
	TranscriptService *service.TranscriptService
}

func NewTranscriptController(ingestService *service.IngestService, transcriptService *service.TranscriptService) *TranscriptController {
	return &TranscriptController{
		IngestService:     ingestService,
		TranscriptService: transcriptService,
	}
}

// Ingest godoc
// @Summary 接收课堂转写稿（公开端点）
// @Description 浏览器插件无需登录即可提交。两小时窗口内同一教师/课程/标题的提交会合并为一条待处理记录
// @Tags 转写稿
// @Accept  json
// @Produce  json
// @Param   body body service.TranscriptSubmission true "转写稿内容"
// @Success 200 {object} util.Response{data=service.IngestResult} "已追加到现有记录"
// @Success 201 {object} util.Response{data=service.IngestResult} "已创建新记录"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课程码无效"
// @Failure 429 {object} util.Response "请求过于频繁"
// @Router /api/ingest/transcript [post]
func (c *TranscriptController) Ingest(ctx *gin.Context) {
	var sub service.TranscriptSubmission
	if err := ctx.ShouldBindJSON(&sub); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.IngestService.Submit(&sub)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.Error(ctx, 404, "课程码无效")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	if result.Action == service.ActionCreated {
		util.Created(ctx, result)
		return
	}
	util.Success(ctx, result)
}

// ListPending godoc
// @Summary 待处理转写稿列表
// @Tags 转写稿
// @Produce  json
// @Security BearerAuth
// @Param   includeProcessed query bool false "是否包含已处理记录"
// @Success 200 {object} util.Response{data=[]model.PendingTranscript}
// @Router /api/teacher/transcripts [get]
func (c *TranscriptController) ListPending(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	includeProcessed, _ := strconv.ParseBool(ctx.DefaultQuery("includeProcessed", "false"))

	pending, err := c.TranscriptService.ListPending(claims.UserID, includeProcessed)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, pending)
}

// GetPending godoc
// @Summary 待处理转写稿详情
// @Tags 转写稿
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "记录ID"
// @Success 200 {object} util.Response{data=model.PendingTranscript}
// @Failure 404 {object} util.Response "记录不存在"
// @Router /api/teacher/transcripts/{id} [get]
func (c *TranscriptController) GetPending(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid transcript id")
		return
	}

	pending, err := c.TranscriptService.GetPending(claims.UserID, uint(id))
	if err != nil {
		c.handleTranscriptError(ctx, err)
		return
	}
	util.Success(ctx, pending)
}

// DeletePending godoc
// @Summary 删除待处理转写稿
// @Tags 转写稿
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "记录ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "记录不存在"
// @Router /api/teacher/transcripts/{id} [delete]
func (c *TranscriptController) DeletePending(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid transcript id")
		return
	}

	if err := c.TranscriptService.DeletePending(claims.UserID, uint(id)); err != nil {
		c.handleTranscriptError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type ProcessRequest struct {
	CourseID uint   `json:"courseId" binding:"required"`
	Title    string `json:"title" binding:"omitempty,max=200"`
}

// Process godoc
// @Summary 将待处理转写稿转为课时
// @Description 在事务内标记已处理并创建课时，随后异步生成摘要。重复处理返回409
// @Tags 转写稿
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "记录ID"
// @Param   body body ProcessRequest true "目标课程与可选标题"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Failure 404 {object} util.Response "记录或课程不存在"
// @Failure 409 {object} util.Response "记录已被处理"
// @Router /api/teacher/transcripts/{id}/process [post]
func (c *TranscriptController) Process(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid transcript id")
		return
	}

	var req ProcessRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.TranscriptService.Process(claims.UserID, uint(id), req.CourseID, req.Title)
	if err != nil {
		if errors.Is(err, util.ErrAlreadyProcessed) {
			util.Conflict(ctx, "该转写稿已被处理")
			return
		}
		c.handleTranscriptError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, util.Response{
		Code:    http.StatusCreated,
		Message: "summary is being generated",
		Data:    lesson,
	})
}

func (c *TranscriptController) handleTranscriptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrPendingNotFound), errors.Is(err, util.ErrCourseNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
