package controller

import (
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type TutorController struct {
	TutorService *service.TutorService
	Hub          *service.ChatHub
}

func NewTutorController(tutorService *service.TutorService, hub *service.ChatHub) *TutorController {
	return &TutorController{
		TutorService: tutorService,
		Hub:          hub,
	}
}

type AskRequest struct {
	Question string `json:"question" binding:"required,min=1,max=2000"`
}

// Ask 学生向AI助教提问
// @Summary AI助教问答
// @Description 基于课时转录内容回答学生提问，SSE流式返回
// @Tags 助教
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   body body AskRequest true "问题内容"
// @Success 200 {string} string "SSE流"
// @Failure 403 {object} util.Response "未选该课程"
// @Router /api/student/lessons/{id}/tutor/ask [post]
func (c *TutorController) Ask(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	lessonID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	var req AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stream, errChan, err := c.TutorService.Ask(claims.UserID, uint(lessonID), req.Question)
	if err != nil {
		c.handleTutorError(ctx, err)
		return
	}

	// 设置SSE响应头
	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("Transfer-Encoding", "chunked")

	// 循环读取并发送AI回答内容
	for content := range stream {
		ctx.SSEvent("message", content)
		ctx.Writer.Flush()
	}

	if err := <-errChan; err != nil {
		ctx.SSEvent("error", err.Error())
		ctx.Writer.Flush()
	}

	ctx.SSEvent("end", "done")
	ctx.Writer.Flush()
}

// History godoc
// @Summary 历史对话
// @Tags 助教
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   limit query int false "返回条数"
// @Success 200 {object} util.Response{data=[]model.ChatMessage}
// @Failure 403 {object} util.Response "未选该课程"
// @Router /api/student/lessons/{id}/tutor/history [get]
func (c *TutorController) History(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	lessonID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	messages, err := c.TutorService.History(claims.UserID, uint(lessonID), limit)
	if err != nil {
		c.handleTutorError(ctx, err)
		return
	}
	util.Success(ctx, messages)
}

// ServeWs godoc
// @Summary 课时房间WebSocket
// @Description 升级为WebSocket连接，接收房间内实时消息。token通过query参数传递
// @Tags 助教
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Router /api/student/lessons/{id}/ws [get]
func (c *TutorController) ServeWs(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	lessonID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	service.ServeWs(c.Hub, ctx.Writer, ctx.Request, claims.UserID, uint(lessonID))
}

func (c *TutorController) handleTutorError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrLessonNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrNotEnrolled):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
